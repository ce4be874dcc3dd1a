package app

import (
	"context"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/devshell/internal/infrastructure/config"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/devshell/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/devshell/internal/project"
	"github.com/GriffinCanCode/devshell/internal/runtime"
	"github.com/GriffinCanCode/devshell/internal/shared/utils"
	"github.com/GriffinCanCode/devshell/internal/shell/commands"
	"github.com/GriffinCanCode/devshell/internal/shell/manager"
	"github.com/GriffinCanCode/devshell/internal/shell/mock"
	"github.com/GriffinCanCode/devshell/internal/shell/sandbox"
	"github.com/GriffinCanCode/devshell/internal/storage"
	"github.com/GriffinCanCode/devshell/internal/terminal"
)

var _ manager.Sandbox = (*sandbox.Shell)(nil)

// Factory builds shells and terminals for new sessions.
type Factory struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	history  storage.Store
	manifest *project.Manifest
	breaker  *resilience.Breaker
	boot     runtime.BootFunc
}

// NewFactory opens the history store and loads the configured manifest.
func NewFactory(cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Factory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var history storage.Store = storage.NewMemory()
	if dir := cfg.Shell.HistoryDir; dir != "" {
		fs, err := storage.NewDir(dir)
		if err != nil {
			return nil, fmt.Errorf("open history store: %w", err)
		}
		history = fs
	}

	f := &Factory{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		history: history,
		breaker: resilience.New(resilience.Settings{
			MaxFailures: uint32(max(cfg.Sandbox.BootMaxFailures, 0)),
			Cooldown:    cfg.Sandbox.BootCooldown,
			OnStateChange: func(from, to resilience.State) {
				logger.Warn("sandbox boot breaker changed state",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		}),
	}
	f.WithBooter(runtime.NewLocalBooter(runtime.LocalConfig{
		Root:             cfg.Sandbox.Root,
		URLHost:          cfg.Sandbox.URLHost,
		PortPollInterval: cfg.Sandbox.PortPollInterval,
		Logger:           logger.Named("runtime"),
	}))

	if p := cfg.Sandbox.Manifest; p != "" {
		m, err := project.LoadManifest(p)
		if err != nil {
			return nil, err
		}
		f.manifest = m
		logger.Info("project manifest loaded", zap.String("path", p), zap.String("root", m.Root))
	}
	return f, nil
}

// WithBooter replaces the sandbox runtime booter. Boots still go through
// the factory's circuit breaker.
func (f *Factory) WithBooter(boot runtime.BootFunc) *Factory {
	f.boot = func(ctx context.Context) (runtime.Runtime, error) {
		var rt runtime.Runtime
		err := f.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			rt, err = boot(ctx)
			return err
		})
		return rt, err
	}
	return f
}

// BootState reports the sandbox boot breaker state.
func (f *Factory) BootState() resilience.State {
	return f.breaker.State()
}

// WithManifest replaces the project manifest.
func (f *Factory) WithManifest(m *project.Manifest) *Factory {
	f.manifest = m
	return f
}

// Config returns the configuration the factory was built from.
func (f *Factory) Config() *config.Config {
	return f.cfg
}

// NewShell creates a shell manager starting in mock mode.
func (f *Factory) NewShell() *manager.Manager {
	user, host := f.cfg.Shell.User, f.cfg.Shell.Host
	home := path.Join("/home", user)

	table := commands.New(
		commands.WithIdentity(user, host, home),
		commands.WithLogger(f.logger.Named("commands")),
	)
	simulated := mock.New(table,
		mock.WithHomeDir(home),
		mock.WithIdentity(user, host),
		mock.WithLogger(f.logger.Named("mock")),
	)

	newSandbox := func() manager.Sandbox {
		return sandbox.New(f.boot, sandbox.WithLogger(f.logger.Named("sandbox")))
	}

	return manager.New(simulated, newSandbox,
		manager.WithLogger(f.logger.Named("shell")),
		manager.WithMetrics(f.metrics),
	)
}

// NewTerminal creates a terminal over sh whose history persists under key.
func (f *Factory) NewTerminal(sh terminal.Executor, out io.Writer, key string) *terminal.Terminal {
	return terminal.New(sh, out,
		terminal.WithLogger(f.logger.Named("terminal")),
		terminal.WithHistorySize(f.cfg.Shell.HistorySize),
		terminal.WithHistoryStore(f.history, HistoryKey(key)),
	)
}

// HistoryKey returns the storage key for a user's command history.
func HistoryKey(user string) string {
	if user == "" {
		user = "default"
	}
	return "history/" + user
}

// ProjectFiles resolves the manifest into a mount map. It returns nil
// when no manifest is configured.
func (f *Factory) ProjectFiles(ctx context.Context) (map[string]string, error) {
	if f.manifest == nil {
		return nil, nil
	}
	return f.manifest.Resolve(ctx)
}

// EnableSandbox resolves the project files, checks them against the mount
// limits and switches sh to the sandbox.
func (f *Factory) EnableSandbox(ctx context.Context, sh *manager.Manager, onServerReady func(port int, url string)) error {
	files, err := f.ProjectFiles(ctx)
	if err != nil {
		return fmt.Errorf("resolve project files: %w", err)
	}
	if err := utils.ValidateMountFiles(files); err != nil {
		return fmt.Errorf("invalid project files: %w", err)
	}
	return sh.EnableSandboxed(ctx, files, onServerReady)
}
