package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nzyazin/schoolwallet/internal/core/logger"
	"github.com/Nzyazin/schoolwallet/internal/server"
	"github.com/Nzyazin/schoolwallet/pkg/config"
)

func main() {
	cfg, err := config.LoadConfigApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	log, cleanup := logger.NewLogger(cfg.LogDir)
	defer cleanup()

	srv, err := server.NewServer(log, cfg)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField("error", err))
		return
	}

	go func() {
		log.Info("Starting server",
			logger.StringField("addr", cfg.HTTPAddr),
			logger.StringField("storage", cfg.Storage),
			logger.StringField("timezone", cfg.Location.String()))
		if err := srv.Run(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorField("error", err))
	}

	log.Info("Server exited properly")
}
