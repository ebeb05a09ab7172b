package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/swlody/fridge-poetry/internal/acceptor"
	"github.com/swlody/fridge-poetry/internal/broadcaster"
	"github.com/swlody/fridge-poetry/internal/config"
	"github.com/swlody/fridge-poetry/internal/logging"
	"github.com/swlody/fridge-poetry/internal/metrics"
	"github.com/swlody/fridge-poetry/internal/store"
	"github.com/swlody/fridge-poetry/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	tel, err := telemetry.Init(cfg, logger)
	if err != nil {
		logger.Fatal("telemetry init failed", zap.Error(err))
	}
	defer tel.Close()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.StorePoolSize)
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}

	reg := metrics.NewRegistry()

	bc := broadcaster.New(logger, cfg.BroadcastCapacity)
	bc.OnOverflow = func() { reg.BroadcastDropped.Inc() }

	changes, listenErrs := st.Listen(ctx)
	broadcastDone := make(chan error, 1)
	go func() {
		broadcastDone <- bc.Run(ctx, cancel, changes, listenErrs)
	}()

	logger.Debug("config loaded", zap.Stringer("config", cfg))

	acc := acceptor.New(cfg.BindAddr, st, bc, reg, logger)
	if err := acc.Start(ctx); err != nil {
		logger.Fatal("acceptor start failed", zap.Error(err))
	}

	httpErrCh := make(chan error, 1)
	go func() {
		httpErrCh <- runHTTPServer(ctx, st, reg, cfg.MaxRequestBodyBytes, logger)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
		stop()
	}

	acc.Stop()
	logger.Info("acceptor drained")

	if err := <-broadcastDone; err != nil {
		logger.Error("broadcaster exited with error", zap.Error(err))
	}

	if err := st.Close(); err != nil {
		logger.Error("store close error", zap.Error(err))
	}
}

func runHTTPServer(ctx context.Context, st *store.Store, reg *metrics.Registry, maxBodyBytes int64, logger *zap.Logger) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if st.IsClosed() {
			w.WriteHeader(http.StatusInternalServerError)
			writeJSON(w, map[string]any{"status": "unhealthy"})
			return
		}
		writeJSON(w, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	mux.Handle("/metrics", reg.Handler())

	httpServer := &http.Server{
		Addr:         ":9095",
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown error", zap.Error(err))
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
