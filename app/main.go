package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/galnetfeed/galnet-archive/app/api"
	"github.com/galnetfeed/galnet-archive/app/cfg"
	"github.com/galnetfeed/galnet-archive/app/database"
	"github.com/galnetfeed/galnet-archive/app/fetcher"
	"github.com/galnetfeed/galnet-archive/app/ingest"
	"github.com/galnetfeed/galnet-archive/app/repair"
	"github.com/galnetfeed/galnet-archive/app/search"
	"github.com/galnetfeed/galnet-archive/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting GalNet Archive", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	store, err := database.NewArticleStore(db, appCfg.TableName)
	if err != nil {
		slog.Error("Failed to create article store", "table", appCfg.TableName, "error", err)
		os.Exit(1)
	}
	if err := store.EnsureTable(); err != nil {
		slog.Error("Failed to ensure article table", "table", appCfg.TableName, "error", err)
		os.Exit(1)
	}

	httpClient := &http.Client{}
	galnet := fetcher.NewGalNet(httpClient, appCfg.FeedURL, appCfg.UserAgent,
		appCfg.FetchRate, time.Duration(appCfg.FetchTimeout)*time.Second)

	pipeline := ingest.NewPipeline(galnet, store, appCfg.WorkerCount)
	repairer := repair.NewRepairer(store)
	engine := search.NewEngine(store)

	// One-shot operator modes run to completion and exit.
	if appCfg.Repair {
		report, err := repairer.Run()
		if err != nil {
			slog.Error("Corpus repair failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Corpus repair finished", "removed", report.Removed, "total", report.Total)
		return
	}
	if appCfg.InitBuild {
		result, err := pipeline.InitialBuild(context.Background())
		if err != nil {
			slog.Error("Initial build failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Initial build finished", "articles", result.Count, "failed", len(result.Failures))
		return
	}

	slog.Info("Starting background scheduler", "workers", appCfg.WorkerCount, "interval_minutes", appCfg.UpdateInterval)
	scheduler := tasks.NewScheduler(pipeline, repairer, engine)
	scheduler.Start()
	defer scheduler.Stop()

	apiHandler := api.NewHandler(store, engine, scheduler)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
