package terminal

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/storage"
)

const (
	clearScreen = "\x1b[2J\x1b[3J\x1b[H"
	clearLine   = "\x1b[2K\r"
	eraseChar   = "\b \b"
	crlf        = "\r\n"
)

// Executor runs commands for the terminal.
type Executor interface {
	Execute(ctx context.Context, command string) <-chan string
	Interrupt()
	Prompt() string
}

// Terminal is the keystroke state machine for one session.
type Terminal struct {
	exec       Executor
	out        io.Writer
	logger     *zap.Logger
	store      storage.Store
	historyKey string

	base     context.Context
	stopBase context.CancelFunc

	mu        sync.Mutex
	parser    keyParser
	buffer    []rune
	history   *History
	cursor    int
	saved     string
	executing bool
	execID    uint64
	cancel    context.CancelFunc
	idle      *sync.Cond
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(t *Terminal) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithHistorySize sets the history capacity.
func WithHistorySize(size int) Option {
	return func(t *Terminal) { t.history = NewHistory(size) }
}

// WithHistoryStore loads history from store under key and saves it after
// every recorded command.
func WithHistoryStore(store storage.Store, key string) Option {
	return func(t *Terminal) {
		t.store = store
		t.historyKey = key
	}
}

// New creates a terminal writing to out.
func New(exec Executor, out io.Writer, opts ...Option) *Terminal {
	t := &Terminal{
		exec:    exec,
		out:     out,
		logger:  zap.NewNop(),
		history: NewHistory(DefaultHistorySize),
		cursor:  -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.idle = sync.NewCond(&t.mu)
	t.base, t.stopBase = context.WithCancel(context.Background())
	t.loadHistory()
	return t
}

func (t *Terminal) loadHistory() {
	if t.store == nil {
		return
	}
	data, err := t.store.Get(t.historyKey)
	if err != nil {
		return
	}
	var entries []string
	if err := sonic.Unmarshal(data, &entries); err != nil {
		t.logger.Warn("discarding unreadable history", zap.String("key", t.historyKey), zap.Error(err))
		return
	}
	t.history.Load(entries)
}

func (t *Terminal) saveHistory() {
	if t.store == nil {
		return
	}
	data, err := sonic.Marshal(t.history.Entries())
	if err != nil {
		t.logger.Warn("failed to encode history", zap.Error(err))
		return
	}
	if err := t.store.Set(t.historyKey, data); err != nil {
		t.logger.Warn("failed to save history", zap.String("key", t.historyKey), zap.Error(err))
	}
}

// Start writes the welcome banner and the first prompt.
func (t *Terminal) Start(welcome []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, line := range welcome {
		t.write(line + crlf)
	}
	t.writePrompt()
}

// HandleInput processes raw keystrokes.
func (t *Terminal) HandleInput(data string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, k := range t.parser.feed(data) {
		if t.executing {
			if k.kind == keyInterrupt {
				t.interruptLocked()
			}
			continue
		}

		switch k.kind {
		case keyEnter:
			t.commitLocked()
		case keyBackspace:
			if n := len(t.buffer); n > 0 {
				t.buffer = t.buffer[:n-1]
				t.write(eraseChar)
			}
		case keyInterrupt:
			t.write("^C" + crlf)
			t.resetLineLocked()
			t.writePrompt()
		case keyClear:
			t.write(clearScreen)
			t.resetLineLocked()
			t.writePrompt()
		case keyUp:
			t.historyUpLocked()
		case keyDown:
			t.historyDownLocked()
		case keyRune:
			t.buffer = append(t.buffer, k.r)
			t.write(string(k.r))
		}
	}
}

func (t *Terminal) resetLineLocked() {
	t.buffer = t.buffer[:0]
	t.cursor = -1
	t.saved = ""
}

func (t *Terminal) commitLocked() {
	line := strings.TrimSpace(string(t.buffer))
	t.write(crlf)
	t.resetLineLocked()

	if line == "" {
		t.writePrompt()
		return
	}

	if t.history.Add(line) {
		t.saveHistory()
	}

	t.executing = true
	t.execID++
	ctx, cancel := context.WithCancel(t.base)
	t.cancel = cancel

	go t.consume(t.execID, t.exec.Execute(ctx, line), cancel)
}

// consume writes output of execution id until its stream closes. Chunks
// arriving after the execution was abandoned are dropped.
func (t *Terminal) consume(id uint64, ch <-chan string, cancel context.CancelFunc) {
	defer cancel()

	atLineStart := true
	for chunk := range ch {
		t.mu.Lock()
		if t.execID == id && t.executing && chunk != "" {
			t.write(chunk)
			atLineStart = strings.HasSuffix(chunk, "\n")
		}
		t.mu.Unlock()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.execID != id || !t.executing {
		return
	}
	if !atLineStart {
		t.write(crlf)
	}
	t.finishLocked()
	t.writePrompt()
}

func (t *Terminal) finishLocked() {
	t.executing = false
	t.cancel = nil
	t.idle.Broadcast()
}

func (t *Terminal) interruptLocked() {
	t.exec.Interrupt()
	if t.cancel != nil {
		t.cancel()
	}
	t.execID++

	t.write(shell.InterruptedLine)
	t.resetLineLocked()
	t.finishLocked()
	t.writePrompt()
}

func (t *Terminal) historyUpLocked() {
	n := t.history.Len()
	if n == 0 {
		return
	}
	switch {
	case t.cursor == -1:
		t.saved = string(t.buffer)
		t.cursor = n - 1
	case t.cursor > 0:
		t.cursor--
	default:
		return
	}
	t.replaceLineLocked(t.history.At(t.cursor))
}

func (t *Terminal) historyDownLocked() {
	if t.cursor == -1 {
		return
	}
	if t.cursor < t.history.Len()-1 {
		t.cursor++
		t.replaceLineLocked(t.history.At(t.cursor))
		return
	}
	t.cursor = -1
	saved := t.saved
	t.saved = ""
	t.replaceLineLocked(saved)
}

func (t *Terminal) replaceLineLocked(line string) {
	t.buffer = []rune(line)
	t.write(clearLine + t.exec.Prompt() + line)
}

// Notify prints lines without disturbing the line being edited.
func (t *Terminal) Notify(lines ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.executing {
		for _, line := range lines {
			t.write(line + crlf)
		}
		return
	}

	t.write(clearLine)
	for _, line := range lines {
		t.write(line + crlf)
	}
	t.write(t.exec.Prompt() + string(t.buffer))
}

// Redraw writes a fresh prompt with the current input, for example after
// the backend changed.
func (t *Terminal) Redraw() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.executing {
		t.write(clearLine + t.exec.Prompt() + string(t.buffer))
	}
}

// Wait blocks until no command is executing or ctx ends.
func (t *Terminal) Wait(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.idle.Broadcast()
		t.mu.Unlock()
	})
	defer stop()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.executing {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.idle.Wait()
	}
	return nil
}

// Close abandons any running command.
func (t *Terminal) Close() {
	t.stopBase()
}

// Buffer returns the current input line.
func (t *Terminal) Buffer() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buffer)
}

// History returns committed commands, oldest first.
func (t *Terminal) History() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.history.Entries()
}

// Executing reports whether a command is in flight.
func (t *Terminal) Executing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.executing
}

func (t *Terminal) writePrompt() {
	t.write(t.exec.Prompt())
}

func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.out, s); err != nil {
		t.logger.Debug("terminal write failed", zap.Error(err))
	}
}
