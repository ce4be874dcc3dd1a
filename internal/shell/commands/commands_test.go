package commands

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/shell/mock"
)

func run(t *testing.T, table *Table, cwd, name string, args ...string) []string {
	t.Helper()
	var out []string
	for line := range table.Dispatch(context.Background(), name, args, cwd) {
		out = append(out, line)
	}
	return out
}

func TestEchoPwdWhoami(t *testing.T) {
	table := New(WithIdentity("alice", "lab", "/home/alice"))

	assert.Equal(t, []string{"a b\r\n"}, run(t, table, "/home/alice", "echo", "a", "b"))
	assert.Equal(t, []string{"/tmp\r\n"}, run(t, table, "/tmp", "pwd"))
	assert.Equal(t, []string{"alice\r\n"}, run(t, table, "/", "whoami"))
	assert.Equal(t, []string{"lab\r\n"}, run(t, table, "/", "hostname"))
}

func TestUnknownCommand(t *testing.T) {
	out := run(t, New(), "/", "frobnicate")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "frobnicate: command not found")
}

func TestCdEmitsMarker(t *testing.T) {
	table := New()
	require.NoError(t, table.Fs().MkdirAll("/home/guest/src", 0o755))

	assert.Equal(t, []string{shell.CDMarker + "/home/guest/src"}, run(t, table, "/home/guest", "cd", "src"))
	assert.Equal(t, []string{shell.CDMarker + "/home/guest"}, run(t, table, "/", "cd"))

	out := run(t, table, "/home/guest", "cd", "missing")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "no such file or directory")

	out = run(t, table, "/home/guest", "cd", "README.txt")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "not a directory")
}

func TestFilesystemCommands(t *testing.T) {
	table := New()
	home := table.Home()

	assert.Empty(t, run(t, table, home, "mkdir", "-p", "a/b/c"))
	assert.Empty(t, run(t, table, home, "touch", "a/file.txt"))
	require.NoError(t, afero.WriteFile(table.Fs(), home+"/a/notes.md", []byte("one\ntwo\n"), 0o644))

	ls := run(t, table, home, "ls", "a")
	require.Len(t, ls, 1)
	assert.Contains(t, ls[0], "b/")
	assert.Contains(t, ls[0], "file.txt")
	assert.Contains(t, ls[0], "notes.md")

	assert.Equal(t, []string{"one\r\ntwo\r\n"}, run(t, table, home, "cat", "a/notes.md"))

	out := run(t, table, home, "mkdir", "x/y")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "no such file or directory")

	out = run(t, table, home, "rm", "a")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "is a directory")

	assert.Empty(t, run(t, table, home, "rm", "-r", "a"))
	exists, err := afero.Exists(table.Fs(), home+"/a")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLsHidesDotfiles(t *testing.T) {
	table := New()
	require.NoError(t, afero.WriteFile(table.Fs(), "/srv/.env", nil, 0o644))
	require.NoError(t, afero.WriteFile(table.Fs(), "/srv/app.js", nil, 0o644))

	assert.Equal(t, []string{"app.js\r\n"}, run(t, table, "/srv", "ls"))
	assert.Equal(t, []string{".env  app.js\r\n"}, run(t, table, "/srv", "ls", "-a"))
}

func TestDateUsesClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	table := New(WithClock(func() time.Time { return fixed }))

	assert.Equal(t, []string{fixed.Format(time.UnixDate) + "\r\n"}, run(t, table, "/", "date"))
}

func TestHelpListsCommands(t *testing.T) {
	out := strings.Join(run(t, New(), "/", "help"), "")
	for _, name := range []string{"echo", "cd", "ls", "js"} {
		assert.Contains(t, out, name)
	}
}

func TestJS(t *testing.T) {
	table := New()

	assert.Equal(t, []string{"3\r\n"}, run(t, table, "/", "js", "1", "+", "2"))
	assert.Equal(t, []string{"hi 42\r\n"}, run(t, table, "/", "node", "-e", "console.log('hi', 42)"))

	out := run(t, table, "/", "js", "throw new Error('boom')")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "boom")

	out = run(t, table, "/", "node", "script.js")
	require.Len(t, out, 1)
	assert.Contains(t, out[0], "node -e")
}

func TestJSInterruptedByContext(t *testing.T) {
	table := New()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for range table.Dispatch(ctx, "js", []string{"while(true){}"}, "/") {
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("infinite loop was not interrupted")
	}
}

func TestSleepHonorsContext(t *testing.T) {
	table := New()
	ctx, cancel := context.WithCancel(context.Background())
	out := table.Dispatch(ctx, "sleep", []string{"30"}, "/")
	cancel()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("sleep ignored cancellation")
	}
}

func TestSimulatedShellSession(t *testing.T) {
	table := New()
	sh := mock.New(table, mock.WithHomeDir(table.Home()))
	ctx := context.Background()

	drain := func(cmd string) []string {
		var out []string
		for l := range sh.Execute(ctx, cmd) {
			out = append(out, l)
		}
		return out
	}

	assert.Empty(t, drain("mkdir work"))
	assert.Empty(t, drain("cd work"))
	assert.Equal(t, table.Home()+"/work", sh.Cwd())
	assert.Equal(t, []string{table.Home() + "/work\r\n"}, drain("PWD"))
	assert.Empty(t, drain("cd .."))
	assert.Equal(t, table.Home(), sh.Cwd())
}

func TestYesInterruptedBySimulatedShell(t *testing.T) {
	old := yesInterval
	yesInterval = 5 * time.Millisecond
	defer func() { yesInterval = old }()

	sh := mock.New(New())
	out := sh.Execute(context.Background(), "yes ok")

	assert.Equal(t, "ok\r\n", <-out)
	sh.Interrupt()

	var last string
	for l := range out {
		last = l
	}
	assert.Equal(t, shell.InterruptedLine, last)
}
