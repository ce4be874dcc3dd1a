// Package app assembles per-session shells and terminals from configuration.
//
// A Factory owns the process-wide pieces: the history store, the optional
// project manifest and the sandbox runtime settings. Each call to NewShell
// produces an independent shell manager with its own simulated filesystem
// and, once enabled, its own sandbox workspace.
//
//	f, err := app.NewFactory(cfg, logger, metrics)
//	sh := f.NewShell()
//	term := f.NewTerminal(sh, os.Stdout, "guest")
package app
