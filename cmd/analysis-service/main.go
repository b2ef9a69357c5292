package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/preclinical-platform/platform/pkg/analysis"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/database"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/middleware"
	"github.com/preclinical-platform/platform/pkg/scheduler"
	"github.com/preclinical-platform/platform/pkg/study"
)

func main() {
	logger.Init()
	cfg := config.Load()

	props, err := config.LoadProperties(cfg.PropertiesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Failed to load platform properties, using defaults")
	}

	db, err := database.GetPostgres()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to connect to database")
	}

	repo := study.NewRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to migrate database")
	}

	reportCache := cache.NewRedisCache(database.GetRedis(), 30*time.Minute)
	service := analysis.NewService(repo, repo, repo, repo, reportCache)

	sched := scheduler.New(repo, repo, repo, service, reportCache, props)
	sched.Start(context.Background())
	defer sched.Stop()

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.MaxBody(cfg.MaxRequestBody))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods("GET")
	router.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		sqlDB, err := db.DB()
		if err != nil || sqlDB.PingContext(r.Context()) != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	analysis.NewHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.AnalysisServicePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.AnalysisServicePort,
		}).Info("Analysis service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down analysis service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Analysis service stopped")
}
