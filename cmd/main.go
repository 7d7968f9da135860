package main

import (
	"context"
	"fmt"
	"os"

	"github.com/courseforge/courseforge-backend/internal/auth"
	"github.com/courseforge/courseforge-backend/internal/clients/openai"
	"github.com/courseforge/courseforge-backend/internal/clients/tavily"
	"github.com/courseforge/courseforge-backend/internal/clients/youtube"
	"github.com/courseforge/courseforge-backend/internal/config"
	"github.com/courseforge/courseforge-backend/internal/docstore"
	apphttp "github.com/courseforge/courseforge-backend/internal/http"
	httpH "github.com/courseforge/courseforge-backend/internal/http/handlers"
	httpMW "github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/jobs/dispatch"
	"github.com/courseforge/courseforge-backend/internal/jobs/lessongen"
	"github.com/courseforge/courseforge-backend/internal/jobs/runtime"
	"github.com/courseforge/courseforge-backend/internal/observability"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/services"
	"github.com/courseforge/courseforge-backend/internal/sse"
	"github.com/courseforge/courseforge-backend/internal/temporalx"
	"github.com/courseforge/courseforge-backend/internal/utils"
)

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

	ctx := context.Background()

	// Tracing (opt-in via OTEL_ENABLED)
	if shutdown := observability.InitTracing(ctx, log, observability.Config{
		ServiceName: apphttp.ServiceName,
		Environment: cfg.Mode,
	}); shutdown != nil {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn("Tracer shutdown failed", "error", err)
			}
		}()
	}

	// Store
	var store docstore.Store
	if cfg.Firestore.ProjectID != "" {
		store, err = docstore.NewFirestoreStore(ctx, cfg.Firestore.ProjectID, log)
		if err != nil {
			log.Fatal("Could not init Firestore", "error", err)
		}
	} else {
		log.Warn("FIRESTORE_PROJECT_ID not set; using in-memory store")
		store = docstore.NewMemoryStore()
	}

	// Clients
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

	// SSE
	sseHub := sse.NewHub(log)

	// Job handlers
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

	// Dispatcher: Temporal when configured, inline otherwise.
	var dispatcher dispatch.Dispatcher
	tc, err := temporalx.NewClient(cfg, log)
	if err != nil {
		log.Fatal("Could not init Temporal client", "error", err)
	}
	if tc != nil {
		defer tc.Close()
		dispatcher, err = dispatch.NewTemporal(log, tc, cfg.Temporal.TaskQueue)
		if err != nil {
			log.Fatal("Could not init Temporal dispatcher", "error", err)
		}
	} else {
		concurrency := utils.GetEnvAsInt("INLINE_JOB_CONCURRENCY", 4, log)
		dispatcher = dispatch.NewInline(log, registry, concurrency)
	}

	// Services
	courseGenService := services.NewCourseGenService(log, store, openaiClient, dispatcher, cfg)
	courseService := services.NewCourseService(log, store)
	lessonService := services.NewLessonService(log, store)
	chatService := services.NewChatService(log, store, openaiClient, cfg)

	// Auth
	verifier, err := auth.NewHMACVerifier(cfg.JWT.SecretKey)
	if err != nil {
		log.Fatal("Could not init token verifier", "error", err)
	}

	router := apphttp.NewRouter(apphttp.RouterConfig{
		Log:              log,
		Mode:             cfg.Mode,
		AllowOrigins:     cfg.AllowOrigins,
		AuthMiddleware:   httpMW.NewAuthMiddleware(log, verifier),
		CourseGenHandler: httpH.NewCourseGenHandler(log, courseGenService),
		CourseHandler:    httpH.NewCourseHandler(log, courseService),
		LessonHandler:    httpH.NewLessonHandler(log, lessonService),
		ChatHandler:      httpH.NewChatHandler(log, chatService),
		RealtimeHandler:  httpH.NewRealtimeHandler(log, sseHub),
		HealthHandler:    httpH.NewHealthHandler(),
	})

	log.Info("Server listening", "port", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
