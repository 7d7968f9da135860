package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/http/response"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/services"
	"github.com/courseforge/courseforge-backend/internal/types"
)

type LessonHandler struct {
	log           *logger.Logger
	lessonService services.LessonService
}

func NewLessonHandler(log *logger.Logger, lessonService services.LessonService) *LessonHandler {
	return &LessonHandler{
		log:           log.With("handler", "LessonHandler"),
		lessonService: lessonService,
	}
}

func refFromParams(c *gin.Context) types.LessonRef {
	return types.LessonRef{
		CourseID: c.Param("id"),
		ModuleID: c.Param("mid"),
		LessonID: c.Param("lid"),
	}
}

func (h *LessonHandler) Complete(c *gin.Context) {
	uid := middleware.UserID(c)
	if err := h.lessonService.Complete(c.Request.Context(), uid, refFromParams(c)); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"completed": true})
}

func (h *LessonHandler) Retrieve(c *gin.Context) {
	uid := middleware.UserID(c)
	view, err := h.lessonService.Retrieve(c.Request.Context(), uid, refFromParams(c))
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, view)
}
