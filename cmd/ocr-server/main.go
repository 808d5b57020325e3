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

	"github.com/gin-gonic/gin"

	"github.com/Lllllllleong/ocrgrabber/internal/config"
	"github.com/Lllllllleong/ocrgrabber/internal/httpapi"
	"github.com/Lllllllleong/ocrgrabber/internal/logging"
	"github.com/Lllllllleong/ocrgrabber/internal/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error.", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logging.Setup(cfg.Log)
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := services.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			slog.Warn("Failed to close pipeline.", "error", err)
		}
	}()

	router := httpapi.Setup(httpapi.NewRunHandler(pipeline, cfg.Server.MaxUploadMB<<20))
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server starting.", "addr", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down server.")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
