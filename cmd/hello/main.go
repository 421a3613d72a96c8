package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keshon/citron/internal/config"
	"github.com/keshon/citron/internal/hello"
	"github.com/keshon/citron/internal/logging"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadHello()
	if err != nil {
		slog.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger, logCloser, err := logging.Setup(logging.Config{Dir: cfg.Log.Dir, Level: cfg.Log.Level}, "hello.log")
	if err != nil {
		slog.Error("Failed to set up logging", slog.Any("error", err))
		os.Exit(1)
	}
	defer logCloser.Close()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           hello.NewRouter(logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Hello server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("Received signal, shutting down", slog.String("signal", s.String()))
	case err, ok := <-errCh:
		if ok {
			logger.Error("Hello server failed", slog.Any("error", err))
			logCloser.Close()
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", slog.Any("error", err))
		return
	}
	logger.Info("Hello server stopped")
}
