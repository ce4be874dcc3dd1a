package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/GriffinCanCode/devshell/internal/runtime"
)

type fakeProcess struct {
	id string
	r  *io.PipeReader
	w  *io.PipeWriter

	done chan struct{}
	once sync.Once
	code int

	mu     sync.Mutex
	cols   int
	rows   int
	killed bool
	closed bool
}

func newFakeProcess(id string, cols, rows int) *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{id: id, r: r, w: w, done: make(chan struct{}), cols: cols, rows: rows}
}

func (p *fakeProcess) ID() string        { return p.id }
func (p *fakeProcess) Output() io.Reader { return p.r }

func (p *fakeProcess) write(s string) error {
	_, err := p.w.Write([]byte(s))
	return err
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.code = code
		p.w.Close()
		close(p.done)
	})
}

func (p *fakeProcess) Wait(ctx context.Context) (int, error) {
	select {
	case <-p.done:
		return p.code, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(137)
	return nil
}

func (p *fakeProcess) Resize(cols, rows int) error {
	select {
	case <-p.done:
		return runtime.ErrProcessExited
	default:
	}
	p.mu.Lock()
	p.cols, p.rows = cols, rows
	p.mu.Unlock()
	return nil
}

func (p *fakeProcess) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.r.Close()
}

func (p *fakeProcess) size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cols, p.rows
}

func (p *fakeProcess) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// script drives a spawned fake process.
type script func(p *fakeProcess, program string, args []string)

type fakeRuntime struct {
	mu        sync.Mutex
	script    script
	spawnErr  error
	spawned   []*fakeProcess
	mounted   *runtime.Node
	listeners map[int]func(int, string)
	nextID    int
	torndown  int
}

func newFakeRuntime(s script) *fakeRuntime {
	return &fakeRuntime{script: s, listeners: make(map[int]func(int, string))}
}

func (f *fakeRuntime) Workdir() string { return "/workspace/project" }

func (f *fakeRuntime) Mount(_ context.Context, root *runtime.Node) error {
	f.mu.Lock()
	f.mounted = root
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) Spawn(_ context.Context, program string, args []string, opts runtime.SpawnOptions) (runtime.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.spawnErr != nil {
		return nil, f.spawnErr
	}
	p := newFakeProcess(fmt.Sprintf("proc-%d", len(f.spawned)), opts.Cols, opts.Rows)
	f.spawned = append(f.spawned, p)
	if f.script != nil {
		go f.script(p, program, args)
	}
	return p, nil
}

func (f *fakeRuntime) OnServerReady(fn func(int, string)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *fakeRuntime) emit(port int) {
	f.mu.Lock()
	fns := make([]func(int, string), 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(port, fmt.Sprintf("http://localhost:%d", port))
	}
}

func (f *fakeRuntime) Teardown() error {
	f.mu.Lock()
	f.torndown++
	procs := append([]*fakeProcess(nil), f.spawned...)
	f.mu.Unlock()
	for _, p := range procs {
		_ = p.Kill()
	}
	return nil
}

func (f *fakeRuntime) last() *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.spawned) == 0 {
		return nil
	}
	return f.spawned[len(f.spawned)-1]
}

func (f *fakeRuntime) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func bootWith(rt runtime.Runtime) runtime.BootFunc {
	return func(context.Context) (runtime.Runtime, error) { return rt, nil }
}

var errBoot = errors.New("no sandbox support")
