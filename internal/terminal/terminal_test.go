package terminal

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/storage"
)

const prompt = "$ "

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type fakeExecutor struct {
	mu         sync.Mutex
	commands   []string
	interrupts int
	respond    func(ctx context.Context, command string) <-chan string
}

func (f *fakeExecutor) Execute(ctx context.Context, command string) <-chan string {
	f.mu.Lock()
	f.commands = append(f.commands, command)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		return respond(ctx, command)
	}
	ch := make(chan string, 1)
	ch <- "ran " + command + "\r\n"
	close(ch)
	return ch
}

func (f *fakeExecutor) Interrupt() {
	f.mu.Lock()
	f.interrupts++
	f.mu.Unlock()
}

func (f *fakeExecutor) Prompt() string { return prompt }

func (f *fakeExecutor) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

func newTerminal(t *testing.T, opts ...Option) (*Terminal, *fakeExecutor, *syncBuffer) {
	t.Helper()
	exec := &fakeExecutor{}
	out := &syncBuffer{}
	term := New(exec, out, opts...)
	t.Cleanup(term.Close)
	return term, exec, out
}

func wait(t *testing.T, term *Terminal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, term.Wait(ctx))
}

func TestStartWritesWelcomeAndPrompt(t *testing.T) {
	term, _, out := newTerminal(t)

	term.Start([]string{"hello", "world"})
	assert.Equal(t, "hello\r\nworld\r\n"+prompt, out.String())
}

func TestTypingAndBackspace(t *testing.T) {
	term, _, out := newTerminal(t)

	term.HandleInput("lss")
	term.HandleInput("\x7f")
	assert.Equal(t, "ls", term.Buffer())
	assert.Equal(t, "lss\b \b", out.String())

	out.Reset()
	term.HandleInput("\x7f\x7f\x7f")
	assert.Empty(t, term.Buffer())
	assert.Equal(t, "\b \b\b \b", out.String())
}

func TestEnterExecutesCommand(t *testing.T) {
	term, exec, out := newTerminal(t)

	term.HandleInput("echo hi\r")
	wait(t, term)

	assert.Equal(t, []string{"echo hi"}, exec.calls())
	assert.Equal(t, "echo hi\r\nran echo hi\r\n"+prompt, out.String())
	assert.False(t, term.Executing())
	assert.Equal(t, []string{"echo hi"}, term.History())
}

func TestEmptyEnterRedrawsPrompt(t *testing.T) {
	term, exec, out := newTerminal(t)

	term.HandleInput("   \r")
	assert.Empty(t, exec.calls())
	assert.Equal(t, "   \r\n"+prompt, out.String())
	assert.Empty(t, term.History())
}

func TestMissingTrailingNewlineBeforePrompt(t *testing.T) {
	term, exec, out := newTerminal(t)
	exec.respond = func(context.Context, string) <-chan string {
		ch := make(chan string, 1)
		ch <- "no newline"
		close(ch)
		return ch
	}

	term.HandleInput("printf\r")
	wait(t, term)

	assert.Equal(t, "printf\r\nno newline\r\n"+prompt, out.String())
}

func TestInputIgnoredWhileExecuting(t *testing.T) {
	term, exec, out := newTerminal(t)
	release := make(chan struct{})
	exec.respond = func(ctx context.Context, _ string) <-chan string {
		ch := make(chan string)
		go func() {
			defer close(ch)
			<-release
		}()
		return ch
	}

	term.HandleInput("build\r")
	require.True(t, term.Executing())

	out.Reset()
	term.HandleInput("abc\r\x1b[A\x0c")
	assert.Empty(t, out.String())
	assert.Empty(t, term.Buffer())
	assert.Len(t, exec.calls(), 1)

	close(release)
	wait(t, term)
	assert.Equal(t, prompt, out.String())
}

func TestCtrlCInterruptsRunningCommand(t *testing.T) {
	term, exec, out := newTerminal(t)
	late := make(chan string)
	exec.respond = func(ctx context.Context, _ string) <-chan string {
		ch := make(chan string)
		go func() {
			defer close(ch)
			ch <- "tick\r\n"
			ch <- <-late
		}()
		return ch
	}

	term.HandleInput("watch\r")
	require.Eventually(t, func() bool { return strings.Contains(out.String(), "tick") }, time.Second, 5*time.Millisecond)

	term.HandleInput("\x03")

	assert.False(t, term.Executing())
	assert.Equal(t, 1, exec.interrupts)
	assert.True(t, strings.HasSuffix(out.String(), shell.InterruptedLine+prompt))

	before := out.String()
	late <- "late output\r\n"
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, out.String())

	exec.mu.Lock()
	exec.respond = nil
	exec.mu.Unlock()

	term.HandleInput("ls\r")
	wait(t, term)
	assert.Equal(t, []string{"watch", "ls"}, exec.calls())
}

func TestCtrlCWhileIdleClearsBuffer(t *testing.T) {
	term, exec, out := newTerminal(t)

	term.HandleInput("rm -rf\x03")
	assert.Empty(t, term.Buffer())
	assert.Empty(t, exec.calls())
	assert.Zero(t, exec.interrupts)
	assert.Equal(t, "rm -rf^C\r\n"+prompt, out.String())
}

func TestCtrlLClearsScreen(t *testing.T) {
	term, _, out := newTerminal(t)

	term.HandleInput("abc\x0c")
	assert.Empty(t, term.Buffer())
	assert.Equal(t, "abc"+clearScreen+prompt, out.String())
}

func TestHistoryNavigation(t *testing.T) {
	term, _, out := newTerminal(t)
	for _, cmd := range []string{"one", "two", "three"} {
		term.HandleInput(cmd + "\r")
		wait(t, term)
	}

	term.HandleInput("draft")
	term.HandleInput("\x1b[A")
	assert.Equal(t, "three", term.Buffer())
	term.HandleInput("\x1b[A\x1b[A")
	assert.Equal(t, "one", term.Buffer())
	term.HandleInput("\x1b[A")
	assert.Equal(t, "one", term.Buffer())

	term.HandleInput("\x1bOB")
	assert.Equal(t, "two", term.Buffer())
	term.HandleInput("\x1b[B\x1b[B")
	assert.Equal(t, "draft", term.Buffer())

	out.Reset()
	term.HandleInput("\x1b[B")
	assert.Equal(t, "draft", term.Buffer())
	assert.Empty(t, out.String())
}

func TestHistoryNavigationRendersLine(t *testing.T) {
	term, _, out := newTerminal(t)
	term.HandleInput("ls\r")
	wait(t, term)

	out.Reset()
	term.HandleInput("\x1b[A")
	assert.Equal(t, clearLine+prompt+"ls", out.String())
}

func TestCommitResetsHistoryCursor(t *testing.T) {
	term, exec, _ := newTerminal(t)
	term.HandleInput("first\r")
	wait(t, term)

	term.HandleInput("\x1b[A\r")
	wait(t, term)

	assert.Equal(t, []string{"first", "first"}, exec.calls())
	assert.Equal(t, []string{"first"}, term.History())

	term.HandleInput("\x1b[B")
	assert.Empty(t, term.Buffer())
}

func TestHistorySizeOption(t *testing.T) {
	term, _, _ := newTerminal(t, WithHistorySize(2))
	for _, cmd := range []string{"a", "b", "c"} {
		term.HandleInput(cmd + "\r")
		wait(t, term)
	}
	assert.Equal(t, []string{"b", "c"}, term.History())
}

func TestHistoryPersistence(t *testing.T) {
	store := storage.NewMemory()

	first, _, _ := newTerminal(t, WithHistoryStore(store, "history/guest"))
	first.HandleInput("npm install\r")
	wait(t, first)
	first.HandleInput("npm test\r")
	wait(t, first)

	second, _, _ := newTerminal(t, WithHistoryStore(store, "history/guest"))
	assert.Equal(t, []string{"npm install", "npm test"}, second.History())

	second.HandleInput("\x1b[A")
	assert.Equal(t, "npm test", second.Buffer())
}

func TestCorruptHistoryIgnored(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Set("h", []byte("not json")))

	term, _, _ := newTerminal(t, WithHistoryStore(store, "h"))
	assert.Empty(t, term.History())
}

func TestNotify(t *testing.T) {
	term, _, out := newTerminal(t)
	term.HandleInput("np")

	out.Reset()
	term.Notify("Server ready at http://localhost:3000")
	assert.Equal(t, clearLine+"Server ready at http://localhost:3000\r\n"+prompt+"np", out.String())
	assert.Equal(t, "np", term.Buffer())
}

func TestRedraw(t *testing.T) {
	term, _, out := newTerminal(t)
	term.HandleInput("x")

	out.Reset()
	term.Redraw()
	assert.Equal(t, clearLine+prompt+"x", out.String())
}
