package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ariadm/internal/aria2"
	"ariadm/internal/cleanup"
	"ariadm/internal/database"
	"ariadm/internal/downloader"
	"ariadm/internal/folder"
	"ariadm/internal/session"
	"ariadm/internal/web"
)

const shutdownTimeout = 10 * time.Second

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting ariadm", "version", version)

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	plugins, err := database.NewPlugins(cfg.PluginsDatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize plugins database: %w", err)
	}
	defer func() {
		if err := plugins.Close(); err != nil {
			slog.Error("Failed to close plugins database", "error", err)
		}
	}()

	if err := db.NormalizeLegacyUnits(); err != nil {
		slog.Error("Failed to normalize legacy units", "error", err)
	}
	// the previous engine session is gone, so persisted active states are stale
	if err := db.ResetStaleState(); err != nil {
		return err
	}

	store := session.New()
	names, err := db.CategoriesList()
	if err != nil {
		return err
	}
	for _, name := range names {
		store.AddCategory(name)
	}

	process := aria2.NewProcess(cfg.Aria2Path, cfg.Aria2Port)
	if cfg.Aria2Spawn {
		if err := process.Start(); err != nil {
			return fmt.Errorf("failed to start download engine: %w", err)
		}
	}

	client := aria2.NewClient(cfg.EngineURL(), cfg.Aria2Secret, cfg.EngineCallTimeout)
	defer client.Close()

	placer := folder.NewService(cfg.DownloadPath, cfg.DownloadPathTemp, cfg.Subfolder)
	supervisor := downloader.NewSupervisor(db, client, process, downloader.NewLogNotifier(),
		placer, store, downloader.OptionsFromConfig(cfg))

	checkEngine(supervisor, cfg.EngineCallTimeout)

	sweeper := cleanup.NewService(plugins, cfg.DownloadPath, cfg.DownloadPathTemp, placer)
	poller := downloader.NewPoller(supervisor, sweeper, cfg.PollInterval, cfg.PluginSweepInterval)
	server := web.NewServer(cfg, db, plugins, supervisor)

	return runServer(server, poller, supervisor, client, process, cfg.Aria2Spawn)
}

// checkEngine logs the engine version. A silent engine is reported but does not stop startup.
func checkEngine(supervisor *downloader.Supervisor, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	v, err := supervisor.EngineVersion(ctx)
	if err != nil {
		slog.Warn("Download engine did not respond - continuing anyway", "error", err)
		return
	}
	slog.Info("Download engine connected", "version", v)
}

func runServer(
	server *web.Server,
	poller *downloader.Poller,
	supervisor *downloader.Supervisor,
	client *aria2.Client,
	process *aria2.Process,
	spawned bool,
) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := poller.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	cancel()
	poller.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shutdown server gracefully", "error", err)
	}
	supervisor.Close()

	if spawned && process.Running() {
		if err := client.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Download engine did not shut down", "error", err)
			if err := process.Kill(); err != nil {
				slog.Error("Failed to kill download engine", "error", err)
			}
		}
	}

	slog.Info("Shutdown complete")
	return nil
}
