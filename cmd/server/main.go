package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stwalsh4118/taxappeal/internal/config"
	"github.com/stwalsh4118/taxappeal/internal/database"
	"github.com/stwalsh4118/taxappeal/internal/deadlines"
	"github.com/stwalsh4118/taxappeal/internal/handlers"
	"github.com/stwalsh4118/taxappeal/internal/logger"
	"github.com/stwalsh4118/taxappeal/internal/metrics"
	"github.com/stwalsh4118/taxappeal/internal/middleware"
	"github.com/stwalsh4118/taxappeal/internal/repository"
	"github.com/stwalsh4118/taxappeal/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Server.Env)
	if cfg.Server.LogLevel != "" {
		if err := log.SetLevel(cfg.Server.LogLevel); err != nil {
			log.Warn("Ignoring invalid LOG_LEVEL", map[string]interface{}{"level": cfg.Server.LogLevel})
		}
	}
	log.Info("Starting tax appeal API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
	})

	ctx := context.Background()
	db, err := database.NewPostgresPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer db.Close()

	log.Info("Database connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			log.Fatal("Failed to apply schema", err, nil)
		}
		log.Info("Schema applied", nil)
	}

	var deadlineLookup services.DeadlineLookup
	calendar, err := deadlines.Load(cfg.Analysis.DeadlineCalendarPath)
	if err != nil {
		log.Fatal("Failed to load deadline calendar", err, map[string]interface{}{
			"path": cfg.Analysis.DeadlineCalendarPath,
		})
	}
	if calendar != nil {
		deadlineLookup = calendar
		log.Info("Deadline calendar loaded", map[string]interface{}{
			"path":    cfg.Analysis.DeadlineCalendarPath,
			"windows": len(calendar.Windows),
		})
	}

	registry := metrics.NewRegistry()
	m, err := metrics.NewSet(registry)
	if err != nil {
		log.Fatal("Failed to register metrics", err, nil)
	}

	propertyRepo := repository.NewPropertyRepository(db)
	socialProofRepo := repository.NewSocialProofRepository(db)
	appealRepo := repository.NewAppealRepository(db)

	analysisService := services.NewAnalysisService(propertyRepo, socialProofRepo, deadlineLookup, services.AnalysisOptions{
		Params:              cfg.AnalyzerParams(),
		ComparablePoolSize:  cfg.Analysis.ComparablePoolSize,
		SocialProofTimeout:  cfg.Analysis.SocialProofTimeout,
		SocialProofCacheTTL: cfg.Analysis.SocialProofCacheTTL,
	}, m.Analysis, log)
	appealService := services.NewAppealService(appealRepo, propertyRepo, analysisService, services.AppealServiceConfig{
		Lifecycle:        cfg.LifecycleParams(),
		MarketMultiplier: cfg.Analysis.MarketMultiplier,
	}, m.Appeals, log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	handlers.UseJSONFieldNames()
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> CORS -> Metrics
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))
	router.Use(middleware.Metrics(m.HTTP))

	healthHandler := handlers.NewHealthHandler(db, cfg.Server.Env, calendar != nil)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	handlers.RegisterAPIRoutes(
		router.Group("/api/v1"),
		handlers.NewAnalysisHandler(analysisService),
		handlers.NewAppealHandler(appealService),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
