package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/courseforge/courseforge-backend/internal/platform/logger"
)

type Event string

const (
	EventCourseProgress Event = "CourseGenerationProgress"
)

type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	UserID   string
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
}

// Hub fans out progress events to connected clients by channel. A user's
// course updates go to the channel "user:{uid}".
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func UserChannel(uid string) string {
	return "user:" + uid
}

func (h *Hub) NewClient(userID string) *Client {
	return &Client{
		ID:       uuid.New(),
		UserID:   userID,
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 10),
		done:     make(chan struct{}),
	}
}

func (h *Hub) AddChannel(client *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	client.Channels[channel] = true
	clients, exists := h.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true

	h.log.Debug("SSE client subscribed", "client_id", client.ID, "channel", channel)
}

func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range client.Channels {
		if subs, ok := h.subscriptions[ch]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
}

func (h *Hub) Broadcast(msg Message) {
	if msg.Channel == "" {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clients {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("Dropping SSE message; outbound buffer full", "client_id", c.ID)
		}
	}
}

// CourseProgress implements the lesson jobs' progress notifier. Must not
// block: Broadcast drops on full buffers.
func (h *Hub) CourseProgress(uid, courseID string, generated, total int64) {
	h.Broadcast(Message{
		Channel: UserChannel(uid),
		Event:   EventCourseProgress,
		Data: map[string]any{
			"courseId":         courseID,
			"generatedLessons": generated,
			"totalLessons":     total,
		},
	})
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			raw, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(client *Client) {
	close(client.done)
	h.RemoveClient(client)
	close(client.Outbound)
}
