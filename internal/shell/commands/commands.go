// Package commands provides the default dispatch table for the simulated
// shell. Commands operate on an in-memory filesystem seeded with a home
// directory.
package commands

import (
	"context"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/shell"
)

// Handler runs a command. A returned error is rendered as one red line.
type Handler func(ctx context.Context, env *Env, args []string) error

// Command is one dispatch table entry.
type Command struct {
	Name    string
	Usage   string
	Summary string
	Run     Handler
}

// Env is the execution context handed to a Handler.
type Env struct {
	Fs   afero.Fs
	Cwd  string
	Home string
	User string
	Host string
	Now  func() time.Time

	table *Table
	ctx   context.Context
	out   chan<- string
}

// Println writes line followed by a terminal line break. It reports
// false once the caller stopped reading.
func (e *Env) Println(line string) bool {
	return shell.Emit(e.ctx, e.out, shell.Line(line))
}

// Write sends raw output without a line break.
func (e *Env) Write(raw string) bool {
	return shell.Emit(e.ctx, e.out, raw)
}

// ChangeDir asks the shell to switch its working directory.
func (e *Env) ChangeDir(dir string) bool {
	return shell.Emit(e.ctx, e.out, shell.CDMarker+dir)
}

// Resolve turns p into an absolute, cleaned path. A leading "~" is the
// home directory.
func (e *Env) Resolve(p string) string {
	switch {
	case p == "" || p == "~":
		return e.Home
	case strings.HasPrefix(p, "~/"):
		return path.Join(e.Home, p[2:])
	case path.IsAbs(p):
		return path.Clean(p)
	default:
		return path.Join(e.Cwd, p)
	}
}

// Table maps lower-case command names to handlers.
type Table struct {
	fs     afero.Fs
	logger *zap.Logger
	home   string
	user   string
	host   string
	now    func() time.Time

	mu       sync.RWMutex
	commands map[string]Command
}

// Option configures a Table.
type Option func(*Table)

// WithFs replaces the in-memory filesystem.
func WithFs(fs afero.Fs) Option {
	return func(t *Table) { t.fs = fs }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Table) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithIdentity sets the user, host and home directory.
func WithIdentity(user, host, home string) Option {
	return func(t *Table) {
		if user != "" {
			t.user = user
		}
		if host != "" {
			t.host = host
		}
		if home != "" {
			t.home = home
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// New returns a table with the built-in commands registered.
func New(opts ...Option) *Table {
	t := &Table{
		fs:       afero.NewMemMapFs(),
		logger:   zap.NewNop(),
		home:     "/home/guest",
		user:     "guest",
		host:     "devshell",
		now:      time.Now,
		commands: make(map[string]Command),
	}
	for _, opt := range opts {
		opt(t)
	}

	if err := t.fs.MkdirAll(t.home, 0o755); err != nil {
		t.logger.Warn("failed to create home directory", zap.String("home", t.home), zap.Error(err))
	}
	readme := path.Join(t.home, "README.txt")
	if ok, _ := afero.Exists(t.fs, readme); !ok {
		_ = afero.WriteFile(t.fs, readme, []byte(welcomeReadme), 0o644)
	}

	registerBuiltins(t)
	return t
}

const welcomeReadme = `This is an in-memory filesystem.
Files created here disappear when the session ends.
Run 'help' to list the available commands.
`

// Register adds or replaces a command.
func (t *Table) Register(cmd Command) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commands[strings.ToLower(cmd.Name)] = cmd
}

// Lookup returns the command registered under name.
func (t *Table) Lookup(name string) (Command, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cmd, ok := t.commands[strings.ToLower(name)]
	return cmd, ok
}

// Commands lists registered commands sorted by name.
func (t *Table) Commands() []Command {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cmds := make([]Command, 0, len(t.commands))
	for _, c := range t.commands {
		cmds = append(cmds, c)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Fs exposes the backing filesystem.
func (t *Table) Fs() afero.Fs {
	return t.fs
}

// Home returns the home directory.
func (t *Table) Home() string {
	return t.home
}

// Dispatch implements mock.Dispatcher.
func (t *Table) Dispatch(ctx context.Context, name string, args []string, cwd string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		env := &Env{
			Fs:    t.fs,
			Cwd:   cwd,
			Home:  t.home,
			User:  t.user,
			Host:  t.host,
			Now:   t.now,
			table: t,
			ctx:   ctx,
			out:   out,
		}

		cmd, ok := t.Lookup(name)
		if !ok {
			env.Println(shell.Red(name + ": command not found"))
			return
		}

		if err := cmd.Run(ctx, env, args); err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Debug("command failed", zap.String("command", name), zap.Error(err))
			env.Println(shell.Red(name + ": " + err.Error()))
		}
	}()

	return out
}
