// Command devshell runs a terminal session in the current TTY.
//
//	devshell                       simulated shell
//	devshell -sandbox -dir ./app   sandboxed shell with ./app mounted
//
// Ctrl+D on an empty line exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/GriffinCanCode/devshell/internal/app"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/logging"
	"github.com/GriffinCanCode/devshell/internal/project"
	"github.com/GriffinCanCode/devshell/internal/shell"
	"github.com/GriffinCanCode/devshell/internal/shell/manager"
	"github.com/GriffinCanCode/devshell/internal/terminal"
)

const ctrlD = 0x04

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "devshell: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.LoadOrDefault()

	sandboxed := flag.Bool("sandbox", cfg.Shell.AutoSandbox, "Start in the sandboxed shell")
	dir := flag.String("dir", "", "Project directory mounted into the sandbox")
	flag.StringVar(&cfg.Sandbox.Manifest, "manifest", cfg.Sandbox.Manifest, "Project manifest mounted into the sandbox")
	flag.StringVar(&cfg.Shell.User, "user", cfg.Shell.User, "User shown in the prompt")
	logFile := flag.String("log", "", "Write debug logs to this file")
	flag.Parse()

	logger := logging.NewNop()
	if *logFile != "" {
		l, err := logging.New(logging.Config{Level: "debug", OutputPaths: []string{*logFile}})
		if err != nil {
			return err
		}
		logger = l
	}
	defer logger.Sync()

	factory, err := app.NewFactory(cfg, logger.Logger, nil)
	if err != nil {
		return err
	}
	if *dir != "" {
		factory.WithManifest(&project.Manifest{Root: *dir})
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return errors.New("stdin is not a terminal")
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("enter raw mode: %w", err)
	}
	defer term.Restore(fd, state)

	sh := factory.NewShell()
	defer sh.Close()

	t := factory.NewTerminal(sh, os.Stdout, cfg.Shell.User)
	defer t.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	go watchSize(ctx, sh, int(os.Stdout.Fd()), logger.Logger)

	t.Start(sh.WelcomeMessage())
	if *sandboxed {
		go enableSandbox(ctx, factory, sh, t, logger.Logger)
	}

	return readInput(ctx, os.Stdin, t)
}

func enableSandbox(ctx context.Context, factory *app.Factory, sh *manager.Manager, t *terminal.Terminal, logger *zap.Logger) {
	t.Notify(shell.Cyan("Starting sandbox..."))
	err := factory.EnableSandbox(ctx, sh, func(port int, url string) {
		t.Notify(shell.Green(fmt.Sprintf("Server ready on port %d: %s", port, url)))
	})
	if err != nil {
		logger.Warn("sandbox unavailable", zap.Error(err))
		t.Notify(shell.Yellow("Sandbox unavailable, using simulated shell: " + err.Error()))
		return
	}
	t.Notify(shell.Green("Sandbox ready."))
}

// watchSize forwards the window size now and on every SIGWINCH.
func watchSize(ctx context.Context, sh *manager.Manager, fd int, logger *zap.Logger) {
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, syscall.SIGWINCH)
	defer signal.Stop(winch)

	for {
		if cols, rows, err := term.GetSize(fd); err == nil {
			sh.Resize(cols, rows)
		} else {
			logger.Debug("get window size", zap.Error(err))
		}
		select {
		case <-winch:
		case <-ctx.Done():
			return
		}
	}
}

// readInput feeds stdin to the terminal until EOF, Ctrl+D on an idle empty
// line, or ctx ends.
func readInput(ctx context.Context, r io.Reader, t *terminal.Terminal) error {
	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk)
	go func() {
		buf := make([]byte, 1024)
		for {
			n, err := r.Read(buf)
			data := append([]byte(nil), buf[:n]...)
			select {
			case chunks <- chunk{data, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-chunks:
			pending = append(pending, c.data...)
			if len(pending) == 1 && pending[0] == ctrlD && !t.Executing() && t.Buffer() == "" {
				return nil
			}
			n := shell.CompleteUTF8(pending)
			if n > 0 {
				t.HandleInput(string(pending[:n]))
				pending = append(pending[:0], pending[n:]...)
			}
			if c.err != nil {
				if errors.Is(c.err, io.EOF) {
					return nil
				}
				return c.err
			}
		}
	}
}
