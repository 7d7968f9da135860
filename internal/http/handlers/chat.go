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

type ChatHandler struct {
	log         *logger.Logger
	chatService services.ChatService
}

func NewChatHandler(log *logger.Logger, chatService services.ChatService) *ChatHandler {
	return &ChatHandler{
		log:         log.With("handler", "ChatHandler"),
		chatService: chatService,
	}
}

// Chat streams the model response as plain text chunks. The request context
// is threaded into the upstream call, so a client disconnect cancels
// generation.
func (h *ChatHandler) Chat(c *gin.Context) {
	uid := middleware.UserID(c)

	var req services.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	flusher, _ := c.Writer.(http.Flusher)
	wrote := false
	onDelta := func(delta string) {
		_, _ = c.Writer.WriteString(delta)
		wrote = true
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := h.chatService.Stream(c.Request.Context(), uid, req, onDelta); err != nil {
		if c.Request.Context().Err() != nil {
			return
		}
		// Headers are gone once the first chunk is flushed; only a clean
		// failure can still produce an error envelope.
		if !wrote {
			if apperr.IsKind(err, apperr.KindValidation) {
				response.RespondAppError(c, err)
				return
			}
			h.log.Error("Chat stream failed", "error", err, "user_id", uid)
			response.RespondAppError(c, err)
			return
		}
		h.log.Error("Chat stream aborted mid-response", "error", err, "user_id", uid)
	}
}
