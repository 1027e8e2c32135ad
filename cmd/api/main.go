package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Dan9191/credit-service/internal/clock"
	"github.com/Dan9191/credit-service/internal/config"
	"github.com/Dan9191/credit-service/internal/handler"
	"github.com/Dan9191/credit-service/internal/integrations/cbr"
	"github.com/Dan9191/credit-service/internal/integrations/core"
	"github.com/Dan9191/credit-service/internal/repository"
	"github.com/Dan9191/credit-service/internal/scheduler"
	"github.com/Dan9191/credit-service/internal/service"
	"github.com/Dan9191/credit-service/internal/sweep"
	"github.com/Dan9191/credit-service/internal/utils/email"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// store is what both the service and the sweeper persist through
type store interface {
	service.Store
	sweep.Store
}

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logLevel, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("Unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Initialize storage
	var st store
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		st = repository.NewMemoryStore()
	default:
		db, err := sql.Open("postgres", cfg.DBConn)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("Failed to ping database: %v", err)
		}
		st = repository.NewRepository(db)
	}

	// Initialize layers
	clk := clock.System()
	coreClient := core.NewClient(cfg.CoreServiceURL, cfg.CoreServiceAPIKey, cfg.CoreServiceTimeout, logger)
	cbrClient := cbr.NewCBRClient(cfg.CBRURL, logger)
	svc := service.NewService(st, coreClient, coreClient, clk, service.Options{
		MinCreditAmount: cfg.MinCreditAmount,
		Step:            cfg.PeriodStep,
		SignatureKey:    cfg.CreditHMACKey,
	}, logger)

	var notifier sweep.Notifier
	if cfg.EmailEnabled() {
		notifier = email.NewSender(cfg, logger)
	}
	sweeper := sweep.NewSweeper(st, notifier, clk, sweep.Config{
		PenaltyRate: cfg.PenaltyRate,
		Step:        cfg.PeriodStep,
	}, logger)

	sched := scheduler.NewScheduler(sweeper, svc, logger)
	if err := sched.Register(cfg.SweepCron, cfg.TariffCron); err != nil {
		logger.Fatalf("Failed to schedule jobs: %v", err)
	}
	sched.Start()

	h := handler.NewHandler(svc, cbrClient, sched, logger)

	// Start server
	addr := fmt.Sprintf(":%s", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.NewRouter(h, cfg),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	go func() {
		logger.Infof("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
	sched.Stop(ctx)
}
