package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vytor/studyflash/internal/api"
	"github.com/vytor/studyflash/internal/config"
	"github.com/vytor/studyflash/internal/db"
	"github.com/vytor/studyflash/internal/jobs"
	"github.com/vytor/studyflash/internal/logger"
	"github.com/vytor/studyflash/internal/quiz"
	"github.com/vytor/studyflash/internal/repository/sqlite"
	"github.com/vytor/studyflash/internal/services"
	"github.com/vytor/studyflash/internal/study"
	"github.com/vytor/studyflash/internal/worker"
)

func main() {
	exportPath := flag.String("export", "", "write the latest snapshot as YAML to this file (- for stdout) and exit")
	importPath := flag.String("import", "", "load a YAML snapshot from this file (- for stdin), store it and exit")
	flag.Parse()

	cfg := config.Load()

	// Initialize logger
	log := logger.New(
		logger.WithLevel(logger.ParseLevel(cfg.LogLevel)),
		logger.WithColors(cfg.LogColors),
	)
	logger.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration: %v", err)
		os.Exit(1)
	}
	tags, err := cfg.EligibleTags()
	if err != nil {
		log.Error("invalid quiz tags: %v", err)
		os.Exit(1)
	}

	log.Info("===========================================")
	log.Info("StudyFlash Server Starting")
	log.Info("===========================================")
	log.Info("configuration loaded")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("db_path=%s", cfg.DBPath)
	log.Debug("log_level=%s", cfg.LogLevel)
	log.Debug("snapshot_worker_count=%d", cfg.SnapshotWorkerCount)
	log.Debug("snapshot_queue_size=%d", cfg.SnapshotQueueSize)
	log.Debug("snapshot_retention=%d", cfg.SnapshotRetention)
	log.Debug("quiz_tags=%v", tags)
	log.Debug("cors_origins=%v", cfg.CORSOrigins)

	// Open database
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Error("failed to open database: %v", err)
		os.Exit(1)
	}
	defer func() {
		log.Debug("closing database connection")
		database.Close()
	}()

	snapshotRepo := sqlite.NewSnapshotRepository(database.DB)
	pool := worker.NewPool(cfg.SnapshotWorkerCount, cfg.SnapshotQueueSize)
	queue := jobs.NewWorkerQueue(pool, snapshotRepo, cfg.SnapshotRetention)

	engine := quiz.NewEngine(quiz.WithEligibleTags(tags...))
	store := services.NewStore(study.New(), engine, queue)
	snapshotService := services.NewSnapshotService(store, snapshotRepo, cfg.SnapshotRetention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = logger.NewContext(ctx, log)

	if _, err := snapshotService.RestoreLatest(ctx); err != nil {
		log.Error("failed to restore snapshot: %v", err)
		os.Exit(1)
	}

	switch {
	case *exportPath != "":
		if err := runExport(ctx, snapshotService, *exportPath); err != nil {
			log.Error("export failed: %v", err)
			os.Exit(1)
		}
		return
	case *importPath != "":
		if err := runImport(ctx, snapshotService, *importPath); err != nil {
			log.Error("import failed: %v", err)
			os.Exit(1)
		}
		return
	}

	srv := &api.Server{
		Study:       services.NewStudyService(store),
		Quiz:        services.NewQuizService(store),
		Snapshots:   snapshotService,
		DB:          database,
		CORSOrigins: cfg.CORSOrigins,
	}

	pool.Start(ctx)

	// Configure HTTP server
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop

	log.Info("received signal %v, initiating graceful shutdown", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(logger.NewContext(context.Background(), log), 30*time.Second)
	defer shutdownCancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	// Queued saves finish before the final one so it is the newest.
	log.Debug("stopping snapshot pool")
	pool.Stop()

	if _, err := snapshotService.SaveNow(shutdownCtx); err != nil {
		log.Error("final snapshot failed: %v", err)
	}

	log.Info("===========================================")
	log.Info("StudyFlash Server Stopped")
	log.Info("===========================================")
}

func runExport(ctx context.Context, svc services.SnapshotService, path string) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := svc.Export(ctx, w); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("exported snapshot to %s", path)
	return nil
}

func runImport(ctx context.Context, svc services.SnapshotService, path string) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	if err := svc.Import(ctx, r); err != nil {
		return err
	}
	// The pool is not running in this mode, so save directly.
	id, err := svc.SaveNow(ctx)
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("imported %s as snapshot %d", path, id)
	return nil
}
