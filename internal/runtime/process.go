package runtime

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"

	"github.com/creack/pty"
)

type localProcess struct {
	id      string
	cmd     *exec.Cmd
	ptmx    *os.File
	onClose func()

	done     chan struct{}
	exitCode int

	closeOnce sync.Once
	closeErr  error
}

func (p *localProcess) ID() string {
	return p.id
}

func (p *localProcess) Output() io.Reader {
	return p.ptmx
}

func (p *localProcess) waitLoop() {
	err := p.cmd.Wait()
	p.exitCode = exitCode(err)
	close(p.done)
}

// exitCode maps a Wait error to a shell-style exit status. A process
// killed by a signal reports 128 plus the signal number.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

func (p *localProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.exitCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (p *localProcess) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Kill terminates the process group started for the terminal.
func (p *localProcess) Kill() error {
	if p.exited() {
		return nil
	}
	pid := p.cmd.Process.Pid
	if err := syscall.Kill(-pid, syscall.SIGKILL); err == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *localProcess) Resize(cols, rows int) error {
	if p.exited() {
		return ErrProcessExited
	}
	return pty.Setsize(p.ptmx, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
}

func (p *localProcess) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.ptmx.Close()
		if p.onClose != nil {
			p.onClose()
		}
	})
	return p.closeErr
}
