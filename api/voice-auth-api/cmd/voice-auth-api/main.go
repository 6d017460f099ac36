package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	internal_store "github.com/vocalisai/vocalis/api/voice-auth-api/internal/store"
	voice_auth_routers "github.com/vocalisai/vocalis/api/voice-auth-api/router"
	"github.com/vocalisai/vocalis/config"
	"github.com/vocalisai/vocalis/pkg/commons"
	"github.com/vocalisai/vocalis/pkg/configs"
	"github.com/vocalisai/vocalis/pkg/connectors"
)

func main() {
	vConfig, err := config.InitConfig()
	if err != nil {
		log.Printf("config init failed: %v", err)
		os.Exit(1)
	}
	cfg, err := config.GetApplicationConfig(vConfig)
	if err != nil {
		log.Printf("config invalid: %v", err)
		os.Exit(1)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Printf("logger init failed: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	postgres, err := connectors.NewPostgresConnector(
		configs.NewPostgresConfig(cfg.DbUrl, cfg.DbKey), logger)
	if err != nil {
		logger.Errorf("database connection failed: %v", err)
		os.Exit(1)
	}
	defer postgres.Close()

	if err := internal_store.Migrate(context.Background(), postgres); err != nil {
		logger.Errorf("migration failed: %v", err)
		os.Exit(1)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", voice_auth_routers.CallIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	engine.Use(voice_auth_routers.CallID())

	components := voice_auth_routers.NewComponents(cfg, logger, postgres)
	voice_auth_routers.VoiceAuthApiRoute(cfg, engine, logger, components.Service)
	voice_auth_routers.HealthCheckRoutes(cfg, engine, logger, components.Store, components.Extractor)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
		// verify holds the request open for the whole capture session
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.SessionBudget() + 30*time.Second,
	}

	go func() {
		logger.Infow("server listening", "addr", addr, "version", cfg.Version)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server stopped: %v", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
}
