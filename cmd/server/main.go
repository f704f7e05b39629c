package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicbrief/civicbrief/internal/auth"
	"github.com/civicbrief/civicbrief/internal/briefs"
	"github.com/civicbrief/civicbrief/internal/config"
	"github.com/civicbrief/civicbrief/internal/database"
	"github.com/civicbrief/civicbrief/internal/events"
	"github.com/civicbrief/civicbrief/internal/health"
	"github.com/civicbrief/civicbrief/internal/jobstore"
	"github.com/civicbrief/civicbrief/internal/newsapi"
	"github.com/civicbrief/civicbrief/internal/objstore"
	"github.com/civicbrief/civicbrief/internal/pipeline"
	"github.com/civicbrief/civicbrief/internal/topics"
	"github.com/civicbrief/civicbrief/internal/tts"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := pipeline.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Init(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	if cfg.Env == "development" {
		if err := database.SeedDevData(db); err != nil {
			logger.Warn("Failed to seed dev data", "error", err.Error())
		}
	}

	repo := database.NewRepo(db)

	store, err := jobstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to job store: %v", err)
	}
	defer store.Close()

	queueClient, err := pipeline.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to create queue client: %v", err)
	}
	defer queueClient.Close()

	catalog, err := topics.Load()
	if err != nil {
		log.Fatalf("failed to load topic catalog: %v", err)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	router.GET("/health", gin.WrapF(health.Handler))

	api := router.Group("/api")
	{
		api.GET("/briefs", briefs.ListBriefsHandler(repo))
		api.GET("/briefs/:id", briefs.GetBriefHandler(repo))
		api.POST("/briefs/generate", briefs.GenerateBriefHandler(repo, catalog, queueClient))
	}

	admin := router.Group("/api/admin", auth.RequireAdminToken(cfg.AdminToken))
	{
		admin.DELETE("/briefs", briefs.CleanupHandler(repo, store))
		admin.GET("/jobs/:id", briefs.JobStatusHandler(store))
	}

	// Embedded worker mode runs the whole pipeline in this process.
	if cfg.EmbedWorker {
		objects, err := objstore.NewMinioStore(cfg.Storage)
		if err != nil {
			log.Fatalf("failed to create object store: %v", err)
		}
		if err := objects.EnsureBucket(context.Background()); err != nil {
			log.Fatalf("failed to ensure audio bucket: %v", err)
		}

		publisher, err := events.NewPublisher(cfg.RedisURL)
		if err != nil {
			log.Fatalf("failed to create event publisher: %v", err)
		}
		defer publisher.Close()

		deps := pipeline.Deps{
			Store:    store,
			Users:    repo,
			Bills:    repo,
			Briefs:   repo,
			News:     newsapi.NewClient(cfg.News.BaseURL, cfg.News.APIKey, cfg.News.StubMode),
			Synth:    tts.NewClient(cfg.TTS.BaseURL, cfg.TTS.APIKey, cfg.TTS.ModelID, cfg.TTS.StubMode),
			Objects:  objects,
			Enqueuer: queueClient,
			Catalog:  catalog,
			Voices: pipeline.VoiceConfig{
				HostVoiceID:  cfg.TTS.HostVoiceID,
				GuestVoiceID: cfg.TTS.GuestVoiceID,
			},
			Notifier: publisher,
		}

		stopWorker, err := pipeline.Start(cfg, deps)
		if err != nil {
			log.Fatalf("failed to start embedded worker: %v", err)
		}
		defer stopWorker()

		stopScheduler, err := pipeline.StartScheduler(cfg, logger)
		if err != nil {
			log.Fatalf("failed to start scheduler: %v", err)
		}
		defer stopScheduler()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("Server starting", "port", cfg.Port, "embed_worker", cfg.EmbedWorker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", "error", err.Error())
	}
}
