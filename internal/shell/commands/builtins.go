package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/GriffinCanCode/devshell/internal/shell"
)

const clearScreen = "\x1b[2J\x1b[3J\x1b[H"

var (
	errMissingOperand = errors.New("missing operand")
	errNotDir         = errors.New("not a directory")
	errIsDir          = errors.New("is a directory")
	errNoSuchFile     = errors.New("no such file or directory")
)

func registerBuiltins(t *Table) {
	for _, c := range []Command{
		{Name: "help", Usage: "help", Summary: "list available commands", Run: runHelp},
		{Name: "echo", Usage: "echo [text...]", Summary: "print arguments", Run: runEcho},
		{Name: "pwd", Usage: "pwd", Summary: "print working directory", Run: runPwd},
		{Name: "cd", Usage: "cd [dir]", Summary: "change directory", Run: runCd},
		{Name: "ls", Usage: "ls [-a] [path...]", Summary: "list directory contents", Run: runLs},
		{Name: "cat", Usage: "cat file...", Summary: "print file contents", Run: runCat},
		{Name: "mkdir", Usage: "mkdir [-p] dir...", Summary: "create directories", Run: runMkdir},
		{Name: "touch", Usage: "touch file...", Summary: "create empty files", Run: runTouch},
		{Name: "rm", Usage: "rm [-r] path...", Summary: "remove files", Run: runRm},
		{Name: "whoami", Usage: "whoami", Summary: "print user name", Run: runWhoami},
		{Name: "hostname", Usage: "hostname", Summary: "print host name", Run: runHostname},
		{Name: "date", Usage: "date", Summary: "print current time", Run: runDate},
		{Name: "clear", Usage: "clear", Summary: "clear the screen", Run: runClear},
		{Name: "sleep", Usage: "sleep seconds", Summary: "wait for a duration", Run: runSleep},
		{Name: "yes", Usage: "yes [text]", Summary: "repeat text until interrupted", Run: runYes},
		{Name: "js", Usage: "js code...", Summary: "evaluate JavaScript", Run: runJS},
		{Name: "node", Usage: "node -e code", Summary: "evaluate JavaScript", Run: runNode},
	} {
		t.Register(c)
	}
}

// splitFlags separates leading single-letter flags from operands.
func splitFlags(args []string) (map[rune]bool, []string) {
	flags := make(map[rune]bool)
	for i, a := range args {
		if a == "--" {
			return flags, args[i+1:]
		}
		if len(a) < 2 || a[0] != '-' {
			return flags, args[i:]
		}
		for _, r := range a[1:] {
			flags[r] = true
		}
	}
	return flags, nil
}

func runHelp(_ context.Context, env *Env, _ []string) error {
	env.Println(shell.Bold + "Available commands:" + shell.Reset)
	for _, c := range env.table.Commands() {
		if !env.Println(fmt.Sprintf("  %s %s", shell.Cyan(fmt.Sprintf("%-20s", c.Usage)), c.Summary)) {
			return nil
		}
	}
	return nil
}

func runEcho(_ context.Context, env *Env, args []string) error {
	env.Println(strings.Join(args, " "))
	return nil
}

func runPwd(_ context.Context, env *Env, _ []string) error {
	env.Println(env.Cwd)
	return nil
}

func runCd(_ context.Context, env *Env, args []string) error {
	name := "~"
	if len(args) > 0 {
		name = args[0]
	}
	target := env.Resolve(name)

	info, err := env.Fs.Stat(target)
	if err != nil {
		return fmt.Errorf("%s: %w", name, errNoSuchFile)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", name, errNotDir)
	}

	env.ChangeDir(target)
	return nil
}

func runLs(_ context.Context, env *Env, args []string) error {
	flags, operands := splitFlags(args)
	if len(operands) == 0 {
		operands = []string{"."}
	}

	for i, operand := range operands {
		target := env.Resolve(operand)
		info, err := env.Fs.Stat(target)
		if err != nil {
			return fmt.Errorf("cannot access '%s': %w", operand, errNoSuchFile)
		}

		if !info.IsDir() {
			env.Println(path.Base(target))
			continue
		}

		if len(operands) > 1 {
			if i > 0 {
				env.Println("")
			}
			env.Println(operand + ":")
		}

		entries, err := afero.ReadDir(env.Fs, target)
		if err != nil {
			return err
		}

		var names []string
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".") && !flags['a'] {
				continue
			}
			if e.IsDir() {
				names = append(names, shell.Blue(e.Name()+"/"))
			} else {
				names = append(names, e.Name())
			}
		}
		if len(names) > 0 {
			env.Println(strings.Join(names, "  "))
		}
	}
	return nil
}

func runCat(_ context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return errMissingOperand
	}

	for _, name := range args {
		target := env.Resolve(name)
		info, err := env.Fs.Stat(target)
		if err != nil {
			return fmt.Errorf("%s: %w", name, errNoSuchFile)
		}
		if info.IsDir() {
			return fmt.Errorf("%s: %w", name, errIsDir)
		}

		data, err := afero.ReadFile(env.Fs, target)
		if err != nil {
			return err
		}

		text := strings.ReplaceAll(string(data), "\n", "\r\n")
		if text != "" && !strings.HasSuffix(text, "\r\n") {
			text += "\r\n"
		}
		if !env.Write(text) {
			return nil
		}
	}
	return nil
}

func runMkdir(_ context.Context, env *Env, args []string) error {
	flags, operands := splitFlags(args)
	if len(operands) == 0 {
		return errMissingOperand
	}

	for _, name := range operands {
		target := env.Resolve(name)
		if flags['p'] {
			if err := env.Fs.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("cannot create directory '%s': %w", name, err)
			}
			continue
		}

		if exists, _ := afero.Exists(env.Fs, target); exists {
			return fmt.Errorf("cannot create directory '%s': %w", name, fs.ErrExist)
		}
		if isDir, _ := afero.IsDir(env.Fs, path.Dir(target)); !isDir {
			return fmt.Errorf("cannot create directory '%s': %w", name, errNoSuchFile)
		}
		if err := env.Fs.Mkdir(target, 0o755); err != nil {
			return fmt.Errorf("cannot create directory '%s': %w", name, err)
		}
	}
	return nil
}

func runTouch(_ context.Context, env *Env, args []string) error {
	if len(args) == 0 {
		return errMissingOperand
	}

	now := env.Now()
	for _, name := range args {
		target := env.Resolve(name)
		if exists, _ := afero.Exists(env.Fs, target); exists {
			if err := env.Fs.Chtimes(target, now, now); err != nil {
				return err
			}
			continue
		}
		if isDir, _ := afero.IsDir(env.Fs, path.Dir(target)); !isDir {
			return fmt.Errorf("cannot touch '%s': %w", name, errNoSuchFile)
		}
		if err := afero.WriteFile(env.Fs, target, nil, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func runRm(_ context.Context, env *Env, args []string) error {
	flags, operands := splitFlags(args)
	if len(operands) == 0 {
		return errMissingOperand
	}

	for _, name := range operands {
		target := env.Resolve(name)
		info, err := env.Fs.Stat(target)
		if err != nil {
			return fmt.Errorf("cannot remove '%s': %w", name, errNoSuchFile)
		}
		if info.IsDir() {
			if !flags['r'] && !flags['R'] {
				return fmt.Errorf("cannot remove '%s': %w", name, errIsDir)
			}
			if err := env.Fs.RemoveAll(target); err != nil {
				return err
			}
			continue
		}
		if err := env.Fs.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func runWhoami(_ context.Context, env *Env, _ []string) error {
	env.Println(env.User)
	return nil
}

func runHostname(_ context.Context, env *Env, _ []string) error {
	env.Println(env.Host)
	return nil
}

func runDate(_ context.Context, env *Env, _ []string) error {
	env.Println(env.Now().Format(time.UnixDate))
	return nil
}

func runClear(_ context.Context, env *Env, _ []string) error {
	env.Write(clearScreen)
	return nil
}

func runSleep(ctx context.Context, _ *Env, args []string) error {
	if len(args) == 0 {
		return errMissingOperand
	}
	seconds, err := strconv.ParseFloat(args[0], 64)
	if err != nil || seconds < 0 {
		return fmt.Errorf("invalid time interval '%s'", args[0])
	}

	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
	return nil
}

// yesInterval paces yes so the simulated shell can observe interrupts.
var yesInterval = 100 * time.Millisecond

func runYes(ctx context.Context, env *Env, args []string) error {
	text := "y"
	if len(args) > 0 {
		text = strings.Join(args, " ")
	}

	ticker := time.NewTicker(yesInterval)
	defer ticker.Stop()

	for {
		if !env.Println(text) {
			return nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}
