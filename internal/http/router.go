package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/courseforge/courseforge-backend/internal/http/handlers"
	httpMW "github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

// ServiceName tags spans and the tracer resource for this API process.
const ServiceName = "courseforge-api"

type RouterConfig struct {
	Log          *logger.Logger
	Mode         string
	AllowOrigins []string

	AuthMiddleware *httpMW.AuthMiddleware

	CourseGenHandler *httpH.CourseGenHandler
	CourseHandler    *httpH.CourseHandler
	LessonHandler    *httpH.LessonHandler
	ChatHandler      *httpH.ChatHandler
	RealtimeHandler  *httpH.RealtimeHandler
	HealthHandler    *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Mode == "production" || cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	// No-op until a tracer provider is installed (observability.InitTracing).
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.AllowOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	if cfg.AuthMiddleware != nil {
		api.Use(cfg.AuthMiddleware.RequireAuth())
	}

	if cfg.CourseGenHandler != nil {
		api.POST("/generate/course", cfg.CourseGenHandler.Generate)
		api.GET("/generate/course/:id/status", cfg.CourseGenHandler.Status)
	}

	if cfg.CourseHandler != nil {
		api.GET("/courses", cfg.CourseHandler.List)
		api.POST("/courses/:id/delete", cfg.CourseHandler.Delete)
		api.POST("/courses/:id/restore", cfg.CourseHandler.Restore)
		api.POST("/courses/:id/update-title", cfg.CourseHandler.UpdateTitle)
	}

	if cfg.LessonHandler != nil {
		api.POST("/courses/:id/modules/:mid/lessons/:lid/complete", cfg.LessonHandler.Complete)
		api.GET("/retrieve/courses/:id/modules/:mid/lessons/:lid", cfg.LessonHandler.Retrieve)
	}

	if cfg.ChatHandler != nil {
		api.POST("/chat", cfg.ChatHandler.Chat)
	}

	if cfg.RealtimeHandler != nil {
		api.GET("/sse/stream", cfg.RealtimeHandler.Stream)
	}

	return r
}
