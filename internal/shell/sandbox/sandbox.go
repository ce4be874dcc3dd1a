// Package sandbox implements the shell backend that runs commands as real
// processes inside a runtime.Runtime.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/devshell/internal/runtime"
	"github.com/GriffinCanCode/devshell/internal/shell"
)

const readBufferSize = 4096

var _ shell.Shell = (*Shell)(nil)

// Shell is the sandboxed backend. The zero value is not usable; call New.
type Shell struct {
	boot   runtime.BootFunc
	logger *zap.Logger
	group  singleflight.Group

	mu         sync.Mutex
	rt         runtime.Runtime
	epoch      uint64
	ready      bool
	serverURL  string
	seenPorts  map[int]struct{}
	listeners  map[uint64]shell.ServerReadyFunc
	nextID     uint64
	unsubRT    func()
	current    runtime.Process
	cols, rows int
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Shell) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Shell that boots its runtime with boot.
func New(boot runtime.BootFunc, opts ...Option) *Shell {
	s := &Shell{
		boot:      boot,
		logger:    zap.NewNop(),
		listeners: make(map[uint64]shell.ServerReadyFunc),
		cols:      80,
		rows:      24,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Boot starts the runtime once. Concurrent callers share the in-flight
// attempt. A failed attempt leaves the shell unbooted so a later call can
// retry. A context that is already done never starts an attempt.
func (s *Shell) Boot(ctx context.Context) error {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()
	if ready {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return &shell.BootError{Err: err}
	}

	ch := s.group.DoChan("boot", func() (any, error) {
		return nil, s.bootOnce(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &shell.BootError{Err: ctx.Err()}
	}
}

func (s *Shell) bootOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	s.logger.Info("booting sandbox runtime")

	rt, err := s.boot(ctx)
	if err != nil {
		s.mu.Lock()
		s.ready = false
		s.mu.Unlock()
		s.logger.Warn("sandbox boot failed", zap.Error(err))
		return &shell.BootError{Err: err}
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		_ = rt.Teardown()
		s.logger.Info("sandbox torn down during boot")
		return &shell.BootError{Err: runtime.ErrRuntimeClosed}
	}
	s.rt = rt
	s.ready = true
	s.seenPorts = make(map[int]struct{})
	s.mu.Unlock()

	unsub := rt.OnServerReady(s.handleServerReady)

	s.mu.Lock()
	if s.rt == rt {
		s.unsubRT = unsub
		unsub = nil
	}
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}

	s.logger.Info("sandbox runtime ready", zap.String("workdir", rt.Workdir()))
	return nil
}

func (s *Shell) handleServerReady(port int, url string) {
	s.mu.Lock()
	if s.rt == nil {
		s.mu.Unlock()
		return
	}
	if _, seen := s.seenPorts[port]; seen {
		s.mu.Unlock()
		return
	}
	s.seenPorts[port] = struct{}{}
	s.serverURL = url

	ids := make([]uint64, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]shell.ServerReadyFunc, len(ids))
	for i, id := range ids {
		fns[i] = s.listeners[id]
	}
	s.mu.Unlock()

	s.logger.Info("server ready", zap.Int("port", port), zap.String("url", url))
	for _, fn := range fns {
		fn(port, url)
	}
}

// MountFiles writes files into the runtime workspace.
func (s *Shell) MountFiles(ctx context.Context, files map[string]string) error {
	s.mu.Lock()
	rt := s.rt
	s.mu.Unlock()
	if rt == nil {
		return shell.ErrNotBooted
	}

	tree, err := runtime.BuildTree(files)
	if err != nil {
		return err
	}
	if err := rt.Mount(ctx, tree); err != nil {
		return fmt.Errorf("failed to mount files: %w", err)
	}

	s.logger.Debug("files mounted", zap.Int("files", tree.Files()))
	return nil
}

// Execute spawns the command and streams its terminal output verbatim.
func (s *Shell) Execute(ctx context.Context, command string) <-chan string {
	tokens := shell.Tokenize(strings.TrimSpace(command))
	if len(tokens) == 0 {
		return shell.Closed()
	}

	out := make(chan string)
	go s.run(ctx, tokens, out)
	return out
}

func (s *Shell) run(ctx context.Context, tokens []string, out chan<- string) {
	defer close(out)

	s.mu.Lock()
	rt, epoch := s.rt, s.epoch
	cols, rows := s.cols, s.rows
	s.mu.Unlock()

	if rt == nil {
		shell.Emit(ctx, out, shell.Line(shell.Red("Error: "+shell.ErrNotBooted.Error())))
		return
	}

	proc, err := rt.Spawn(ctx, tokens[0], tokens[1:], runtime.SpawnOptions{Cols: cols, Rows: rows})
	if err != nil {
		s.logger.Debug("spawn failed", zap.String("program", tokens[0]), zap.Error(err))
		shell.Emit(ctx, out, shell.Line(shell.Red("Error: "+err.Error())))
		return
	}

	s.mu.Lock()
	s.current = proc
	s.mu.Unlock()

	defer func() {
		_ = proc.Close()
		s.mu.Lock()
		if s.current == proc {
			s.current = nil
		}
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { _ = proc.Kill() })
	defer stop()

	if !stream(ctx, proc.Output(), out) {
		return
	}

	code, err := proc.Wait(ctx)
	if err != nil {
		return
	}

	s.mu.Lock()
	detached := s.current != proc
	torndown := s.epoch != epoch
	s.mu.Unlock()

	switch {
	case torndown:
	case detached:
		shell.Emit(ctx, out, shell.InterruptedLine)
	case code != 0:
		shell.Emit(ctx, out, shell.Line(shell.Yellow(fmt.Sprintf("Process exited with code %d", code))))
	}
}

// stream copies r to out in chunks, holding back an incomplete trailing
// UTF-8 sequence until the next read. It returns false if ctx ended first.
func stream(ctx context.Context, r io.Reader, out chan<- string) bool {
	buf := make([]byte, readBufferSize)
	var carry []byte

	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			cut := shell.CompleteUTF8(data)
			carry = append([]byte(nil), data[cut:]...)
			if cut > 0 && !shell.Emit(ctx, out, string(data[:cut])) {
				return false
			}
		}
		if err != nil {
			break
		}
	}

	if len(carry) > 0 {
		return shell.Emit(ctx, out, string(carry))
	}
	return ctx.Err() == nil
}

// Interrupt kills the running process, if any.
func (s *Shell) Interrupt() {
	s.mu.Lock()
	proc := s.current
	s.current = nil
	s.mu.Unlock()

	if proc == nil {
		return
	}
	if err := proc.Kill(); err != nil {
		s.logger.Debug("interrupt kill failed", zap.String("process_id", proc.ID()), zap.Error(err))
	}
}

// Resize records the dimensions and forwards them to the running process.
// Failures are logged and dropped.
func (s *Shell) Resize(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	proc := s.current
	s.mu.Unlock()

	if proc == nil {
		return
	}
	if err := proc.Resize(cols, rows); err != nil {
		s.logger.Debug("resize dropped", zap.String("process_id", proc.ID()), zap.Error(err))
	}
}

// Size returns the last recorded dimensions.
func (s *Shell) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// OnServerReady registers fn and returns a function removing it.
func (s *Shell) OnServerReady(fn shell.ServerReadyFunc) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners[id] = fn

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Teardown releases the runtime and resets all session state. It may be
// called repeatedly and while a command is running.
func (s *Shell) Teardown() error {
	s.mu.Lock()
	rt, unsub := s.rt, s.unsubRT
	s.rt = nil
	s.unsubRT = nil
	s.ready = false
	s.serverURL = ""
	s.seenPorts = nil
	s.current = nil
	s.listeners = make(map[uint64]shell.ServerReadyFunc)
	s.epoch++
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if rt == nil {
		return nil
	}
	if err := rt.Teardown(); err != nil {
		s.logger.Warn("sandbox teardown failed", zap.Error(err))
		return err
	}

	s.logger.Info("sandbox torn down")
	return nil
}

func (s *Shell) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ServerURL returns the URL of the most recent server-ready event.
func (s *Shell) ServerURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverURL
}

// Cwd is the runtime workspace, or "/" before boot.
func (s *Shell) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rt == nil {
		return "/"
	}
	return s.rt.Workdir()
}

func (s *Shell) Prompt() string {
	return shell.Cyan("sandbox") + ":" + shell.Blue("~/"+path.Base(s.Cwd())) + "$ "
}

func (s *Shell) WelcomeMessage() []string {
	return []string{
		shell.Bold + shell.Green("Sandbox runtime ready") + shell.Reset,
		shell.Gray("Commands run as real processes in " + s.Cwd()),
		"",
	}
}
