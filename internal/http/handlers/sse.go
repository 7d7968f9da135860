package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/courseforge/courseforge-backend/internal/http/middleware"
	"github.com/courseforge/courseforge-backend/internal/platform/logger"
	"github.com/courseforge/courseforge-backend/internal/sse"
)

type RealtimeHandler struct {
	log *logger.Logger
	hub *sse.Hub
}

func NewRealtimeHandler(log *logger.Logger, hub *sse.Hub) *RealtimeHandler {
	return &RealtimeHandler{
		log: log.With("handler", "RealtimeHandler"),
		hub: hub,
	}
}

// Stream subscribes the caller to their own progress channel and holds the
// connection open until the client goes away.
func (h *RealtimeHandler) Stream(c *gin.Context) {
	uid := middleware.UserID(c)

	client := h.hub.NewClient(uid)
	h.hub.AddChannel(client, sse.UserChannel(uid))
	defer h.hub.CloseClient(client)

	h.hub.ServeHTTP(c.Writer, c.Request, client)
}
