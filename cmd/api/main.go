package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xpanvictor/presenced/internal/app"
	"github.com/xpanvictor/presenced/internal/config"
	"github.com/xpanvictor/presenced/internal/database"
	"github.com/xpanvictor/presenced/internal/server"
	"github.com/xpanvictor/presenced/pkg/Logger"
)

// This is the main entry point for the presence daemon.
// Loads in all system components
// Exposes the local shell API
func main() {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	logger.Info("Logger initialized")
	// fetch database connection
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// handle migrations
	if err := database.MigrateDB(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	a, err := app.NewApp(cfg, logger, db)
	if err != nil {
		log.Fatalf("Failed to wire application: %v", err)
	}

	// compose router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	server.InitializeRoutes(router, a.GetServerDependencies())

	if err := a.Engine.Start(); err != nil {
		log.Fatalf("Failed to start engine: %v", err)
	}

	// edits to the config file apply without a restart
	stopWatch, err := config.Watch(logger, func(next *config.Settings) {
		a.Engine.ReloadConfig(next)
	})
	if err != nil {
		logger.Warnf("config watch unavailable: %v", err)
		stopWatch = func() {}
	}

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server exiting %v", err)
		}
	}()
	logger.Infof("Shell API listening on %s", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	stopWatch()
	a.Engine.Stop()

	// 5 secs then cancel
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	logger.Info("Shutdown system")
}
