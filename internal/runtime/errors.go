package runtime

import "errors"

var (
	// ErrRuntimeClosed is returned by operations on a torn down runtime.
	ErrRuntimeClosed = errors.New("runtime: closed")

	// ErrProcessExited is returned when signalling a finished process.
	ErrProcessExited = errors.New("runtime: process exited")

	// ErrMountConflict is returned when a path is both a file and a directory.
	ErrMountConflict = errors.New("runtime: mount conflict")

	// ErrInvalidPath is returned for empty paths or paths escaping the root.
	ErrInvalidPath = errors.New("runtime: invalid path")
)
