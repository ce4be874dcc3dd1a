package runtime

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LocalConfig configures a host runtime.
type LocalConfig struct {
	// Root is the parent of the workspace directory. Empty means os.TempDir.
	Root string

	// URLHost is the host name used in server-ready URLs.
	URLHost string

	// PortPollInterval is how often listening sockets are sampled.
	PortPollInterval time.Duration

	// Env is added to every spawned process.
	Env map[string]string

	Logger *zap.Logger
}

// Local runs processes on the host inside a private workspace directory.
type Local struct {
	cfg     LocalConfig
	workdir string
	logger  *zap.Logger
	watcher *portWatcher

	mu        sync.Mutex
	closed    bool
	processes map[string]*localProcess
	listeners map[uint64]func(port int, url string)
	nextID    uint64
}

// NewLocalBooter returns a BootFunc creating Local runtimes from cfg.
func NewLocalBooter(cfg LocalConfig) BootFunc {
	return func(ctx context.Context) (Runtime, error) {
		return BootLocal(ctx, cfg)
	}
}

// BootLocal verifies PTY support, creates the workspace and starts the
// port watcher.
func BootLocal(ctx context.Context, cfg LocalConfig) (*Local, error) {
	return bootLocal(ctx, cfg, defaultProcFiles)
}

func bootLocal(ctx context.Context, cfg LocalConfig, procFiles []string) (*Local, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.URLHost == "" {
		cfg.URLHost = "localhost"
	}
	if cfg.PortPollInterval <= 0 {
		cfg.PortPollInterval = 500 * time.Millisecond
	}

	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("pty unavailable: %w", err)
	}
	tty.Close()
	ptmx.Close()

	workdir, err := os.MkdirTemp(cfg.Root, "devshell-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	l := &Local{
		cfg:       cfg,
		workdir:   workdir,
		logger:    cfg.Logger.With(zap.String("workdir", workdir)),
		processes: make(map[string]*localProcess),
		listeners: make(map[uint64]func(int, string)),
	}
	l.watcher = newPortWatcher(procFiles, cfg.PortPollInterval, l.emitServerReady, l.logger)
	go l.watcher.run()

	l.logger.Info("local runtime booted")
	return l, nil
}

// Workdir returns the workspace directory.
func (l *Local) Workdir() string {
	return l.workdir
}

// Mount writes root's files below the workspace, creating directories as
// needed and replacing existing files.
func (l *Local) Mount(ctx context.Context, root *Node) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrRuntimeClosed
	}

	return root.Walk(func(p string, node *Node) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target := filepath.Join(l.workdir, filepath.FromSlash(p))
		if node.Dir {
			return os.MkdirAll(target, 0o755)
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		return os.WriteFile(target, []byte(node.Content), 0o644)
	})
}

// Spawn starts program in the workspace attached to a new PTY.
func (l *Local) Spawn(ctx context.Context, program string, args []string, opts SpawnOptions) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrRuntimeClosed
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}

	cmd := exec.Command(program, args...)
	cmd.Dir = l.workdir
	cmd.Env = append(os.Environ(), "TERM=xterm-256color", "PWD="+l.workdir)
	for key, value := range l.cfg.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}
	for key, value := range opts.Env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", key, value))
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(rows),
		Cols: uint16(cols),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", program, err)
	}

	proc := &localProcess{
		id:   uuid.NewString(),
		cmd:  cmd,
		ptmx: ptmx,
		done: make(chan struct{}),
	}
	proc.onClose = func() { l.forget(proc.id) }
	l.processes[proc.id] = proc

	go proc.waitLoop()

	l.logger.Debug("process spawned",
		zap.String("process_id", proc.id),
		zap.String("program", program),
		zap.Int("pid", cmd.Process.Pid))

	return proc, nil
}

func (l *Local) forget(id string) {
	l.mu.Lock()
	delete(l.processes, id)
	l.mu.Unlock()
}

// OnServerReady registers fn for new listening ports.
func (l *Local) OnServerReady(fn func(port int, url string)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *Local) emitServerReady(port int) {
	url := fmt.Sprintf("http://%s:%d", l.cfg.URLHost, port)

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	fns := make([]func(int, string), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	l.logger.Info("server ready", zap.Int("port", port), zap.String("url", url))
	for _, fn := range fns {
		fn(port, url)
	}
}

// Teardown kills all processes, stops the port watcher and removes the
// workspace. Later calls are no-ops.
func (l *Local) Teardown() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	procs := make([]*localProcess, 0, len(l.processes))
	for _, p := range l.processes {
		procs = append(procs, p)
	}
	l.processes = make(map[string]*localProcess)
	l.listeners = make(map[uint64]func(int, string))
	l.mu.Unlock()

	l.watcher.close()

	for _, p := range procs {
		_ = p.Kill()
		_ = p.Close()
	}

	if err := os.RemoveAll(l.workdir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}

	l.logger.Info("local runtime torn down", zap.Int("killed", len(procs)))
	return nil
}
