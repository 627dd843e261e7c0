package snapshot

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// legacyEvalTimeout bounds how long a legacy snapshot file may run.
const legacyEvalTimeout = 2 * time.Second

// EvalLegacySnapshotFile evaluates a snapshot file written as script
// assignments (`exports["k"] = "v" + "w";` and the like) in a goja
// sandbox. Only the `store` and `exports` objects exist in the sandbox and
// every value must evaluate to a string.
func EvalLegacySnapshotFile(text string) (map[string]string, error) {
	l := sub("legacy")
	program, err := goja.Compile("snapshot", text, true)
	if err != nil {
		return nil, fmt.Errorf("%w: compile: %v", ErrMalformedSnapshot, err)
	}

	vm := goja.New()
	store := vm.NewObject()
	if err := vm.Set("store", store); err != nil {
		return nil, fmt.Errorf("legacy sandbox: %w", err)
	}
	if err := vm.Set("exports", store); err != nil {
		return nil, fmt.Errorf("legacy sandbox: %w", err)
	}

	timer := time.AfterFunc(legacyEvalTimeout, func() {
		vm.Interrupt("snapshot evaluation timed out")
	})
	defer timer.Stop()

	if _, err := vm.RunProgram(program); err != nil {
		l.Warn("legacy snapshot evaluation failed", "err", err)
		return nil, fmt.Errorf("%w: eval: %v", ErrMalformedSnapshot, err)
	}

	record := make(map[string]string, len(store.Keys()))
	for _, k := range store.Keys() {
		v, ok := store.Get(k).Export().(string)
		if !ok {
			return nil, fmt.Errorf("%w: value of %q is not a string", ErrMalformedSnapshot, k)
		}
		record[k] = v
	}
	l.Debug("legacy snapshot evaluated", "keys", len(record))
	return record, nil
}
