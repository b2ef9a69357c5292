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
	"github.com/preclinical-platform/platform/pkg/audit"
	"github.com/preclinical-platform/platform/pkg/common/cache"
	"github.com/preclinical-platform/platform/pkg/common/config"
	"github.com/preclinical-platform/platform/pkg/common/database"
	"github.com/preclinical-platform/platform/pkg/common/logger"
	"github.com/preclinical-platform/platform/pkg/common/middleware"
	"github.com/preclinical-platform/platform/pkg/events"
	"github.com/preclinical-platform/platform/pkg/notify"
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

	studyCache := cache.NewRedisCache(database.GetRedis(), 10*time.Minute)

	// Event subscribers: audit trail, notifications, Kafka mirror.
	bus := events.NewBus()

	recorder, err := audit.NewRecorder(db)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize audit trail")
	}
	bus.Subscribe("audit", recorder.HandleEvent)

	notifier := notify.NewEmailNotifier(nil, props)
	defer notifier.Close()
	bus.Subscribe("notify", notifier.HandleEvent)

	mirror := events.NewStreamMirror("study-service")
	defer mirror.Close()
	bus.Subscribe("stream", mirror.Handle)

	service := study.NewService(repo, repo, repo, repo, bus, studyCache, props)

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
	study.NewHandler(service).Register(apiRouter)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.StudyServicePort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.StudyServicePort,
		}).Info("Study service started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down study service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Study service stopped")
}
