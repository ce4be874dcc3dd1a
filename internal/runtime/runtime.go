package runtime

import (
	"context"
	"io"
)

// Runtime executes programs inside an isolated workspace.
type Runtime interface {
	// Workdir is the directory spawned programs start in.
	Workdir() string

	// Mount writes a file tree into the workspace.
	Mount(ctx context.Context, root *Node) error

	// Spawn starts program attached to a terminal of the requested size.
	Spawn(ctx context.Context, program string, args []string, opts SpawnOptions) (Process, error)

	// OnServerReady registers fn for listening-port events and returns a
	// function that removes it.
	OnServerReady(fn func(port int, url string)) func()

	// Teardown kills every process and releases the workspace.
	Teardown() error
}

// SpawnOptions configures a spawned process.
type SpawnOptions struct {
	Cols int
	Rows int
	Env  map[string]string
}

// Process is a handle to a spawned program.
type Process interface {
	ID() string

	// Output is the combined stdout/stderr stream of the terminal.
	Output() io.Reader

	// Wait blocks until exit and returns the exit code.
	Wait(ctx context.Context) (int, error)

	Kill() error
	Resize(cols, rows int) error

	// Close releases the terminal. It is safe to call more than once.
	Close() error
}

// BootFunc creates a ready Runtime.
type BootFunc func(ctx context.Context) (Runtime, error)
