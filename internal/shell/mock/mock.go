// Package mock implements a simulated shell over an external command
// dispatcher. It needs no host processes and tracks an emulated working
// directory.
package mock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/shell"
)

// Dispatcher runs one command by name and streams its output lines. A
// line starting with shell.CDMarker changes the working directory to the
// rest of the line. Implementations close the channel when done and stop
// sending once ctx is cancelled.
type Dispatcher interface {
	Dispatch(ctx context.Context, name string, args []string, cwd string) <-chan string
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(ctx context.Context, name string, args []string, cwd string) <-chan string

func (f DispatchFunc) Dispatch(ctx context.Context, name string, args []string, cwd string) <-chan string {
	return f(ctx, name, args, cwd)
}

var _ shell.Shell = (*Shell)(nil)

// Shell is the simulated backend.
type Shell struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	home       string
	user       string
	host       string

	mu      sync.Mutex
	cwd     string
	cols    int
	rows    int
	current *atomic.Bool
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

// WithHomeDir sets the home directory, which is also the initial cwd.
func WithHomeDir(home string) Option {
	return func(s *Shell) {
		if home != "" {
			s.home = home
		}
	}
}

// WithIdentity sets the user and host shown in the prompt.
func WithIdentity(user, host string) Option {
	return func(s *Shell) {
		if user != "" {
			s.user = user
		}
		if host != "" {
			s.host = host
		}
	}
}

// New creates a simulated shell.
func New(dispatcher Dispatcher, opts ...Option) *Shell {
	s := &Shell{
		dispatcher: dispatcher,
		logger:     zap.NewNop(),
		home:       "/home/guest",
		user:       "guest",
		host:       "devshell",
		cols:       80,
		rows:       24,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cwd = s.home
	return s
}

// Execute dispatches command and forwards its output. Working directory
// changes are applied and never forwarded.
func (s *Shell) Execute(ctx context.Context, command string) <-chan string {
	tokens := shell.Tokenize(strings.TrimSpace(command))
	if len(tokens) == 0 {
		return shell.Closed()
	}

	name := strings.ToLower(tokens[0])
	interrupted := new(atomic.Bool)

	s.mu.Lock()
	s.current = interrupted
	cwd := s.cwd
	s.mu.Unlock()

	out := make(chan string)
	go func() {
		defer close(out)
		defer s.release(interrupted)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		for line := range s.dispatcher.Dispatch(ctx, name, tokens[1:], cwd) {
			if interrupted.Load() {
				shell.Emit(ctx, out, shell.InterruptedLine)
				return
			}
			if dir, ok := strings.CutPrefix(line, shell.CDMarker); ok {
				s.setCwd(strings.TrimRight(dir, "\r\n"))
				continue
			}
			if !shell.Emit(ctx, out, line) {
				return
			}
		}

		if interrupted.Load() {
			shell.Emit(ctx, out, shell.InterruptedLine)
		}
	}()

	return out
}

func (s *Shell) release(flag *atomic.Bool) {
	s.mu.Lock()
	if s.current == flag {
		s.current = nil
	}
	s.mu.Unlock()
}

func (s *Shell) setCwd(dir string) {
	if dir == "" {
		return
	}
	s.mu.Lock()
	s.cwd = dir
	s.mu.Unlock()
	s.logger.Debug("cwd changed", zap.String("cwd", dir))
}

// Interrupt flags the command in flight. The flag is observed before the
// next output line is forwarded.
func (s *Shell) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.Store(true)
	}
}

// Resize only records the dimensions.
func (s *Shell) Resize(cols, rows int) {
	s.mu.Lock()
	s.cols, s.rows = cols, rows
	s.mu.Unlock()
}

// Size returns the last recorded dimensions.
func (s *Shell) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

func (s *Shell) Cwd() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cwd
}

func (s *Shell) Ready() bool {
	return true
}

func (s *Shell) Prompt() string {
	cwd := s.Cwd()
	if cwd == s.home {
		cwd = "~"
	} else if rest, ok := strings.CutPrefix(cwd, s.home+"/"); ok {
		cwd = "~/" + rest
	}
	return shell.Green(s.user+"@"+s.host) + ":" + shell.Blue(cwd) + "$ "
}

func (s *Shell) WelcomeMessage() []string {
	return []string{
		shell.Bold + shell.Cyan("devshell") + " simulated terminal",
		shell.Gray("No sandbox runtime attached. Type 'help' for the built-in commands."),
		"",
	}
}
