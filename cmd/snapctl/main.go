// Command snapctl inspects and maintains snapshot files: it checks that
// they parse, lists their keys, reports and prunes obsolete entries from
// the run history, and re-checks files as they change.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func main() {
	a := &app{fs: afero.NewOsFs(), out: os.Stdout}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "snapctl: %v\n", err)
		os.Exit(1)
	}
}
