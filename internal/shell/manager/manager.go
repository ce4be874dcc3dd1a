// Package manager switches a terminal session between the simulated shell
// and a sandboxed runtime shell, falling back to the simulated shell when
// the sandbox cannot be used.
package manager

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/shell"
)

// Mode names the active backend.
type Mode string

const (
	ModeMock      Mode = "mock"
	ModeSandboxed Mode = "webcontainer"
)

// ErrSandboxDiscarded is returned when the sandbox was torn down while it
// was being enabled.
var ErrSandboxDiscarded = errors.New("manager: sandbox discarded during enable")

// Sandbox is a shell backed by a bootable runtime.
type Sandbox interface {
	shell.Shell
	Boot(ctx context.Context) error
	MountFiles(ctx context.Context, files map[string]string) error
	OnServerReady(fn shell.ServerReadyFunc) func()
	Teardown() error
	ServerURL() string
}

// Manager routes shell calls to the active backend. It starts in ModeMock.
type Manager struct {
	mock       shell.Shell
	newSandbox func() Sandbox
	logger     *zap.Logger
	metrics    *monitoring.Metrics

	mu          sync.Mutex
	mode        Mode
	sandbox     Sandbox
	unsubscribe func()
	lastErr     string
	cols, rows  int
	sized       bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records command and mode metrics.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// New creates a manager over mock. newSandbox is called lazily the first
// time the sandbox is enabled and again after each teardown.
func New(mock shell.Shell, newSandbox func() Sandbox, opts ...Option) *Manager {
	m := &Manager{
		mock:       mock,
		newSandbox: newSandbox,
		logger:     zap.NewNop(),
		mode:       ModeMock,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnableSandboxed boots the sandbox, mounts files and switches to it. On
// failure the manager stays on the simulated shell, remembers the error
// and returns it. No sandbox is created when ctx is already done.
func (m *Manager) EnableSandboxed(ctx context.Context, files map[string]string, onServerReady shell.ServerReadyFunc) error {
	if err := ctx.Err(); err != nil {
		bootErr := &shell.BootError{Err: err}
		m.fail(bootErr)
		return bootErr
	}

	m.mu.Lock()
	if m.sandbox == nil {
		m.sandbox = m.newSandbox()
	}
	sb := m.sandbox
	cols, rows, sized := m.cols, m.rows, m.sized
	m.mu.Unlock()

	if sized {
		sb.Resize(cols, rows)
	}

	err := sb.Boot(ctx)
	m.metrics.RecordBoot(err)
	if err == nil && len(files) > 0 {
		err = sb.MountFiles(ctx, files)
	}
	if err != nil {
		m.fail(err)
		return err
	}

	unsub := sb.OnServerReady(func(port int, url string) {
		m.metrics.RecordServerReady()
		if onServerReady != nil {
			onServerReady(port, url)
		}
	})

	m.mu.Lock()
	if m.sandbox != sb {
		m.mu.Unlock()
		unsub()
		m.fail(ErrSandboxDiscarded)
		return ErrSandboxDiscarded
	}
	prev := m.unsubscribe
	m.unsubscribe = unsub
	from := m.mode
	m.mode = ModeSandboxed
	m.lastErr = ""
	m.mu.Unlock()

	if prev != nil {
		prev()
	}
	m.metrics.RecordModeTransition(string(from), string(ModeSandboxed))
	m.logger.Info("sandboxed shell enabled", zap.Int("files", len(files)))
	return nil
}

func (m *Manager) fail(err error) {
	m.mu.Lock()
	m.lastErr = err.Error()
	from := m.mode
	m.mode = ModeMock
	m.mu.Unlock()

	m.metrics.RecordModeTransition(string(from), string(ModeMock))
	m.logger.Warn("sandboxed shell unavailable, using simulated shell", zap.Error(err))
}

// FallbackToMock switches to the simulated shell and keeps the sandbox
// booted.
func (m *Manager) FallbackToMock() {
	m.mu.Lock()
	from := m.mode
	m.mode = ModeMock
	m.mu.Unlock()

	m.metrics.RecordModeTransition(string(from), string(ModeMock))
	m.logger.Debug("fell back to simulated shell")
}

// TeardownSandboxed releases and discards the sandbox and switches to the
// simulated shell.
func (m *Manager) TeardownSandboxed() {
	m.mu.Lock()
	sb, unsub := m.sandbox, m.unsubscribe
	m.sandbox = nil
	m.unsubscribe = nil
	from := m.mode
	m.mode = ModeMock
	m.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	m.metrics.RecordModeTransition(string(from), string(ModeMock))

	if sb == nil {
		return
	}
	if err := sb.Teardown(); err != nil {
		m.logger.Warn("sandbox teardown failed", zap.Error(err))
		return
	}
	m.logger.Info("sandboxed shell torn down")
}

// Close tears down the sandbox. It is called when the terminal unmounts.
func (m *Manager) Close() {
	m.TeardownSandboxed()
}

func (m *Manager) active() (shell.Shell, Mode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode == ModeSandboxed && m.sandbox != nil {
		return m.sandbox, ModeSandboxed
	}
	return m.mock, ModeMock
}

// Execute runs command on the active backend.
func (m *Manager) Execute(ctx context.Context, command string) <-chan string {
	backend, mode := m.active()
	if strings.TrimSpace(command) == "" {
		return backend.Execute(ctx, command)
	}

	m.metrics.RecordCommand(string(mode))
	timer := monitoring.NewTimer(m.metrics, string(mode))

	src := backend.Execute(ctx, command)
	out := make(chan string)
	go func() {
		defer close(out)
		defer timer.Stop()
		for line := range src {
			if !shell.Emit(ctx, out, line) {
				go drain(src)
				return
			}
		}
	}()
	return out
}

func drain(ch <-chan string) {
	for range ch {
	}
}

// Interrupt interrupts the active backend.
func (m *Manager) Interrupt() {
	backend, mode := m.active()
	backend.Interrupt()
	m.metrics.RecordInterrupt(string(mode))
}

// Resize records the dimensions and applies them to both backends.
func (m *Manager) Resize(cols, rows int) {
	m.mu.Lock()
	m.cols, m.rows, m.sized = cols, rows, true
	sb := m.sandbox
	m.mu.Unlock()

	m.mock.Resize(cols, rows)
	if sb != nil {
		sb.Resize(cols, rows)
	}
}

func (m *Manager) Cwd() string {
	backend, _ := m.active()
	return backend.Cwd()
}

func (m *Manager) Ready() bool {
	backend, _ := m.active()
	return backend.Ready()
}

func (m *Manager) Prompt() string {
	backend, _ := m.active()
	return backend.Prompt()
}

func (m *Manager) WelcomeMessage() []string {
	backend, _ := m.active()
	return backend.WelcomeMessage()
}

// Mode returns the active backend.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// SandboxReady reports whether a sandbox exists and is booted, regardless
// of the active mode.
func (m *Manager) SandboxReady() bool {
	m.mu.Lock()
	sb := m.sandbox
	m.mu.Unlock()
	return sb != nil && sb.Ready()
}

// ServerURL is the most recent server URL reported by the sandbox.
func (m *Manager) ServerURL() string {
	m.mu.Lock()
	sb := m.sandbox
	m.mu.Unlock()
	if sb == nil {
		return ""
	}
	return sb.ServerURL()
}

// LastError is the message of the last failed EnableSandboxed call.
func (m *Manager) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}
