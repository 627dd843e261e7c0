package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ghyeongl/snapcheck/snapshot"
)

type checkStatus int

const (
	statusOK checkStatus = iota
	statusLegacy
	statusMissing
	statusMalformed
)

func (s checkStatus) String() string {
	switch s {
	case statusOK:
		return "ok"
	case statusLegacy:
		return "legacy"
	case statusMissing:
		return "missing"
	default:
		return "malformed"
	}
}

type checkResult struct {
	Path   string
	Status checkStatus
	Keys   int
	Err    error
}

// checkFile parses one snapshot file. Files that only the legacy evaluator
// accepts are reported as legacy and, with rewrite, saved in the current
// format.
func checkFile(env snapshot.Environment, path string, legacy, rewrite bool) checkResult {
	res := checkResult{Path: path}
	text, ok, err := env.ReadSnapshotFile(path)
	if err != nil {
		res.Status, res.Err = statusMalformed, err
		return res
	}
	if !ok {
		res.Status = statusMissing
		return res
	}
	record, err := snapshot.ParseSnapshotFile(text)
	if err == nil {
		res.Status, res.Keys = statusOK, len(record)
		return res
	}
	res.Status, res.Err = statusMalformed, err
	if !legacy {
		return res
	}
	record, lerr := snapshot.EvalLegacySnapshotFile(text)
	if lerr != nil {
		return res
	}
	res.Status, res.Keys, res.Err = statusLegacy, len(record), nil
	if rewrite {
		if err := env.SaveSnapshotFile(path, snapshot.RenderSnapshotFile(env.Header(), record)); err != nil {
			res.Status, res.Err = statusMalformed, fmt.Errorf("rewrite: %w", err)
			return res
		}
		sub("check").Info("legacy snapshot file rewritten", "path", path, "keys", len(record))
	}
	return res
}

func (a *app) report(res checkResult) {
	label := res.Status.String()
	switch res.Status {
	case statusOK:
		label = a.ok(label)
	case statusLegacy, statusMissing:
		label = a.warn(label)
	default:
		label = a.bad(label)
	}
	if res.Err != nil {
		a.printf("%-9s %s: %v\n", label, res.Path, res.Err)
		return
	}
	a.printf("%-9s %s (%d keys)\n", label, res.Path, res.Keys)
}

// checkRoots scans every root and returns the number of malformed files.
func (a *app) checkRoots(roots []string, rewrite bool) (int, error) {
	malformed := 0
	for _, root := range roots {
		ignore := snapshot.LoadIgnore(a.fs, filepath.Join(root, snapshot.IgnoreFileName))
		files, err := snapshot.FindSnapshotFiles(a.fs, root, ignore)
		if err != nil {
			return malformed, fmt.Errorf("scan %s: %w", root, err)
		}
		for _, f := range files {
			res := checkFile(a.env, f, a.cfg.LegacyEval, rewrite)
			a.report(res)
			if res.Status == statusMalformed {
				malformed++
			}
		}
	}
	return malformed, nil
}

func newCheckCmd(a *app) *cobra.Command {
	var rewrite bool
	cmd := &cobra.Command{
		Use:   "check [root...]",
		Short: "Parse every snapshot file below the given roots",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			malformed, err := a.checkRoots(args, rewrite)
			if err != nil {
				return err
			}
			if malformed > 0 {
				return fmt.Errorf("%d malformed snapshot file(s)", malformed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&rewrite, "rewrite", false, "rewrite legacy files in the current format")
	return cmd
}
