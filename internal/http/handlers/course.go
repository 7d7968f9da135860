package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/http/response"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/services"
)

type CourseHandler struct {
	log           *logger.Logger
	courseService services.CourseService
}

func NewCourseHandler(log *logger.Logger, courseService services.CourseService) *CourseHandler {
	return &CourseHandler{
		log:           log.With("handler", "CourseHandler"),
		courseService: courseService,
	}
}

func (h *CourseHandler) Delete(c *gin.Context) {
	uid := middleware.UserID(c)
	if err := h.courseService.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": true})
}

func (h *CourseHandler) Restore(c *gin.Context) {
	uid := middleware.UserID(c)
	if err := h.courseService.Restore(c.Request.Context(), uid, c.Param("id")); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"deleted": false})
}

func (h *CourseHandler) UpdateTitle(c *gin.Context) {
	uid := middleware.UserID(c)

	var req struct {
		Title string `json:"title"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.courseService.UpdateTitle(c.Request.Context(), uid, c.Param("id"), req.Title); err != nil {
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"title": req.Title})
}

func (h *CourseHandler) List(c *gin.Context) {
	uid := middleware.UserID(c)
	courses, err := h.courseService.List(c.Request.Context(), uid)
	if err != nil {
		h.log.Error("List courses failed", "error", err, "user_id", uid)
		response.RespondAppError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"courses": courses})
}
