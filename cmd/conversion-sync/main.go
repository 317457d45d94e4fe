package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"example.com/conversionsync/internal/config"
	"example.com/conversionsync/internal/scheduler"
	"example.com/conversionsync/internal/storage/memory"
	spg "example.com/conversionsync/internal/storage/postgres"
	"example.com/conversionsync/internal/syncjob"
	transport "example.com/conversionsync/internal/transport/http"
)

// stateStore is what both the job and the readiness probe need.
type stateStore interface {
	syncjob.StateStore
	transport.Readier
}

func main() {
	os.Exit(run())
}

// run wires and runs the service and returns the process exit code.
// Deferred cleanup runs before main exits.
func run() int {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	cfg, err := config.Load(envFile)
	logger := newLogger(cfg)
	if err != nil {
		logger.Errorf("load env file: %v", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var store stateStore
	if cfg.PostgresDSN != "" {
		db, err := spg.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Errorf("db connect: %v", err)
			return 1
		}
		defer db.Close()

		mig := filepath.Join("migrations", "0001_init.sql")
		if err := db.RunMigration(ctx, mig); err != nil {
			logger.Errorf("migration: %v", err)
			return 1
		}
		logger.Info("db: connected, migration applied")
		store = spg.NewStateStore(db)
	} else {
		logger.Warn("POSTGRES_DSN not set: watermark kept in memory and lost on restart")
		store = memory.NewStateStore()
	}

	job, err := syncjob.Setup(cfg, syncjob.Deps{
		Store:  store,
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Errorf("setup: %v", err)
		return 1
	}
	logger.WithFields(logrus.Fields{
		"actions":  job.Settings().ActionIDs,
		"policy":   cfg.DeliveryPolicy,
		"interval": cfg.TickInterval.String(),
	}).Info("sync job configured")

	if cfg.RunOnce {
		if _, err := job.Tick(ctx); err != nil {
			return 1
		}
		return 0
	}

	sched := scheduler.New(job, cfg.TickInterval, logger)
	sched.Trigger()
	sched.Start(ctx)

	deps := &transport.ServerDeps{
		Cfg:       cfg,
		Store:     store,
		Job:       job,
		Scheduler: sched,
		Logger:    logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		logger.Errorf("http server: %v", err)
		code = 1
		cancel()
	}

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(shutdownCtx)
	sched.Wait()
	return code
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
