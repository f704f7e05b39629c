package main

import (
	"context"
	"log"

	"github.com/civicbrief/civicbrief/internal/config"
	"github.com/civicbrief/civicbrief/internal/database"
	"github.com/civicbrief/civicbrief/internal/events"
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

	stopScheduler, err := pipeline.StartScheduler(cfg, logger)
	if err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}
	defer stopScheduler()

	stopConsumer, err := events.StartRequestConsumer(cfg.RedisURL,
		events.HandleBriefRequest(logger, repo, catalog, queueClient))
	if err != nil {
		log.Fatalf("failed to start request consumer: %v", err)
	}
	defer stopConsumer()

	// Run blocks and handles its own signal interception.
	if err := pipeline.Run(cfg, deps); err != nil {
		log.Fatalf("worker error: %v", err)
	}
}
