// @title           User Service API
// @version         1.0
// @description     User accounts and cookie-based session authentication.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey CookieAuth
// @in              cookie
// @name            session_id
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

	"UserService/internal/app"
	"UserService/internal/config"
	"UserService/internal/logging"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	if cfg.App.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	log.Info("config loaded",
		"env", cfg.App.Env,
		"session_backend", cfg.Session.Backend,
		"session_ttl", cfg.Session.TTL.Duration(),
		"postgres", cfg.PG.DSN != "",
		"redis", cfg.Redis.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("app init failed", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.HTTP.Port,
		Handler:      application.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout.Duration(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Duration(),
		IdleTimeout:  cfg.HTTP.IdleTimeout.Duration(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown failed", "error", err)
	}
	if err := application.Close(shutdownCtx); err != nil {
		log.Error("close failed", "error", err)
		os.Exit(1)
	}
}
