package shell

import (
	"errors"
	"fmt"
)

// ErrNotBooted is returned by operations that need a booted runtime.
var ErrNotBooted = errors.New("shell: runtime not booted")

// BootError reports a failed attempt to boot a sandboxed runtime.
type BootError struct {
	Err error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("shell: boot failed: %v", e.Err)
}

func (e *BootError) Unwrap() error {
	return e.Err
}
