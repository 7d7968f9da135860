package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/clients/tavily"
	"github.com/courseforge/courseforge-backend/internal/clients/youtube"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	"github.com/courseforge/courseforge-backend/internal/jobs/lessongen"
	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/sse"
	"github.com/courseforge/courseforge-backend/internal/temporalx"
	"github.com/courseforge/courseforge-backend/internal/temporalx/temporalworker"
)

// Worker process: polls the Temporal task queue and runs lesson generation
// jobs. Horizontal scale comes from running more of these.
func main() {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(log)
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}
	if cfg.Temporal.Address == "" {
		log.Fatal("TEMPORAL_ADDRESS is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := docstore.NewFirestoreStore(ctx, cfg.Firestore.ProjectID, log)
	if err != nil {
		log.Fatal("Could not init Firestore", "error", err)
	}

	openaiClient, err := openai.NewClient(cfg, log)
	if err != nil {
		log.Fatal("Could not init OpenAI client", "error", err)
	}
	tavilyClient, err := tavily.NewClient(cfg.TavilyAPIKey, log)
	if err != nil {
		log.Fatal("Could not init Tavily client", "error", err)
	}
	youtubeClient, err := youtube.NewClient(ctx, cfg.YouTubeAPIKey, log)
	if err != nil {
		log.Fatal("Could not init YouTube client", "error", err)
	}

	// Progress events raised here only reach clients connected to this
	// process; API-side consumers poll the status endpoint.
	sseHub := sse.NewHub(log)

	registry := runtime.NewRegistry()
	if err := lessongen.RegisterAll(registry, lessongen.Deps{
		Log:     log,
		Store:   store,
		OpenAI:  openaiClient,
		Tavily:  tavilyClient,
		YouTube: youtubeClient,
		Cfg:     cfg,
		Notify:  sseHub,
	}); err != nil {
		log.Fatal("Could not register lesson handlers", "error", err)
	}

	tc, err := temporalx.NewClient(cfg, log)
	if err != nil {
		log.Fatal("Could not init Temporal client", "error", err)
	}
	if tc == nil {
		log.Fatal("Temporal client disabled; worker cannot start")
	}
	defer tc.Close()

	runner, err := temporalworker.NewRunner(log, tc, cfg, registry)
	if err != nil {
		log.Fatal("Could not init Temporal worker", "error", err)
	}
	if err := runner.Start(ctx); err != nil {
		log.Fatal("Temporal worker failed", "error", err)
	}

	<-ctx.Done()
	log.Info("Worker shutting down")
}
