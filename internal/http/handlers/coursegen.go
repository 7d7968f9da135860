package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/http/response"
	"github.com/courseforge/courseforge-backend/internal/platform/apperr"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/services"
)

type CourseGenHandler struct {
	log       *logger.Logger
	courseGen services.CourseGenService
}

func NewCourseGenHandler(log *logger.Logger, courseGen services.CourseGenService) *CourseGenHandler {
	return &CourseGenHandler{
		log:       log.With("handler", "CourseGenHandler"),
		courseGen: courseGen,
	}
}

// Generate kicks off course generation and returns as soon as the outline
// skeleton is persisted and the lesson jobs are submitted.
func (h *CourseGenHandler) Generate(c *gin.Context) {
	uid := middleware.UserID(c)

	var req services.GenerateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	courseID, err := h.courseGen.GenerateCourse(c.Request.Context(), uid, req)
	if err != nil {
		if !apperr.IsKind(err, apperr.KindValidation) {
			h.log.Error("Course generation failed", "error", err, "user_id", uid)
		}
		response.RespondAppError(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{"id": courseID})
}

func (h *CourseGenHandler) Status(c *gin.Context) {
	uid := middleware.UserID(c)
	courseID := c.Param("id")

	status, err := h.courseGen.Status(c.Request.Context(), uid, courseID)
	if err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, status)
}
