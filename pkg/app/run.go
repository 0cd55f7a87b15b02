// Package app provides the shared entry point for the southd binary.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/goldstone-mgmt/southd/internal/config"
	"github.com/goldstone-mgmt/southd/internal/core"
	"github.com/goldstone-mgmt/southd/internal/reload"
	"github.com/goldstone-mgmt/southd/internal/telemetry"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the default persistent data directory.
	DataDir string

	// LogLevel sets the minimum log level. Defaults to slog.LevelInfo.
	LogLevel slog.Level
}

// Run loads configuration, starts all modules and the reconciliation core,
// and blocks until a shutdown signal is received. SIGHUP and file-change
// events trigger a live configuration reload for modules that implement
// core.Reloader.
func Run(params RunParams) error {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: params.LogLevel,
	}))
	logger.Info("southd starting",
		"version", params.Version,
		"commit", params.Commit,
		"config", cfgPath,
	)

	tele, err := telemetry.Setup(context.Background(), cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tele.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	appCtx := core.NewAppContext(logger, dataDir)
	appCtx = appCtx.WithModuleConfigs(cfg.Modules)

	// Register the config path so modules (e.g. the admin server) can
	// discover it.
	appCtx.RegisterService("config.path", cfgPath)

	application := core.NewApp(appCtx)
	ids := config.Resolve(cfg)
	if err := application.LoadModules(ids); err != nil {
		return err
	}

	// Wire the reconciliation core between LoadModules and Start: discover
	// the datastore and driver modules, assemble the cache, queue,
	// subscriber, emitter, and manager, and append them to the lifecycle.
	if err := wireReconciler(application, appCtx, cfg, logger); err != nil {
		return err
	}

	// Build and register the reload handler BEFORE Start so the admin
	// server can use it.
	handler := reload.NewHandler(application, logger, dataDir)
	appCtx.RegisterService("reload.handler", handler)

	if err := application.Start(); err != nil {
		return err
	}

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := reloadConfig(watchCtx, handler, cfgPath); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				application.Stop()
				logger.Info("shutdown complete")
				return nil
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := reloadConfig(watchCtx, handler, cfgPath); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// reloadConfig loads and validates the new config, then hot-reloads the
// modules that support it. A config that fails validation leaves the
// running application untouched.
func reloadConfig(ctx context.Context, handler *reload.Handler, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return handler.HandleReloadFromConfig(ctx, cfg)
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/southd/southd.yaml →
// ~/.config/southd/southd.yaml → /etc/southd/southd.yaml → ./southd.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, "southd", "southd.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "southd", "southd.yaml"))
	}

	candidates = append(candidates, "/etc/southd/southd.yaml", "southd.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/southd if set, otherwise ~/.local/share/southd per
// the XDG spec.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "southd")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "southd")
}
