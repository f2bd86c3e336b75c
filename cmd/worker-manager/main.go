// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"go.uber.org/zap"

	"opas-admin-workers/internal/app"
	"opas-admin-workers/internal/common/camunda"
	"opas-admin-workers/internal/common/config"
	"opas-admin-workers/internal/common/logger"
	"opas-admin-workers/internal/common/observability"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config load failed:", err)
		os.Exit(1)
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting worker manager", zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var zb *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zb, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      10 * time.Second,
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	var a *app.App
	err = retryWithBackoff(func() error {
		var err error
		a, err = app.New(ctx, cfg, log, obs)
		return err
	}, 5, 2*time.Second, zapLog, "application wiring")
	if err != nil {
		zb.Close()
		zapLog.Fatal("application wiring failed", zap.Error(err))
	}

	a.RegisterHealthCheck("zeebe", zb.HealthCheck)

	handlers := a.Handlers()
	taskTypes := make([]string, 0, len(handlers))
	for tt := range handlers {
		taskTypes = append(taskTypes, tt)
	}
	sort.Strings(taskTypes)

	var workers []*camunda.CamundaWorker
	for _, tt := range taskTypes {
		w := camunda.NewWorker(zb.GetClient(), tt, config.GetWorkerConfig(cfg, tt), handlers[tt], obs, log)
		if w != nil {
			workers = append(workers, w)
		}
	}
	zapLog.Info("workers registered", zap.Int("count", len(workers)))

	apiServer, err := a.APIServer()
	if err != nil {
		zapLog.Fatal("api server setup failed", zap.Error(err))
	}
	srv := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           apiServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLog.Info("admin API listening", zap.String("address", cfg.HTTP.Address))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("admin API server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("shutdown signal received, stopping workers")

	for _, w := range workers {
		w.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("admin API shutdown failed", zap.Error(err))
	}

	a.Close()
	if err := zb.Close(); err != nil {
		zapLog.Error("error closing Zeebe client", zap.Error(err))
	}
	zapLog.Info("worker manager stopped")
}
