package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/codetrail/codetrail/internal/logger"
)

// AppEvent is the envelope broadcast to SSE clients. Type values come
// from the correlator's Event* constants plus "heartbeat".
type AppEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type HeartbeatPayload struct {
	Timestamp int64 `json:"timestamp"`
	Uptime    int64 `json:"uptime"`
}

type SSEMessage struct {
	Event     AppEvent `json:"event"`
	Timestamp int64    `json:"timestamp"`
	ID        string   `json:"id"`
}

const heartbeatInterval = 30 * time.Second

// EventsHandler fans pipeline events out to connected SSE clients. It
// implements correlator.EventsEmitter; each client gets its own
// buffered channel and slow clients drop messages rather than block
// the pipeline.
type EventsHandler struct {
	clients    map[string]chan SSEMessage
	clientsMux sync.RWMutex
	startTime  time.Time
}

func NewEventsHandler() *EventsHandler {
	return &EventsHandler{
		clients:   make(map[string]chan SSEMessage),
		startTime: time.Now(),
	}
}

// Emit broadcasts a pipeline event to every connected client.
func (h *EventsHandler) Emit(eventType string, payload any) {
	msg := SSEMessage{
		Event:     AppEvent{Type: eventType, Payload: payload},
		Timestamp: time.Now().UnixMilli(),
		ID:        uuid.New().String(),
	}

	h.clientsMux.RLock()
	defer h.clientsMux.RUnlock()
	for id, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			logger.Debugf("Dropping event %s for slow client %s", eventType, id)
		}
	}
}

// HandleSSE streams pipeline events to the editor extension.
// @Summary Server-Sent Events stream of pipeline activity
// @Description Streams real-time events in Server-Sent Events format.
// @Description
// @Description ## Event Types
// @Description - **interaction:recorded**: an interaction was added to the open session
// @Description - **commit:detected**: a new commit appeared in the workspace repository
// @Description - **session:opened**: a fresh session replaced a finalized or abandoned one
// @Description - **session:finalized**: the open session was correlated with a commit
// @Description - **session:abandoned**: the open session timed out and was discarded
// @Description - **archive:saved**: a finalized session was archived to remote storage
// @Description - **heartbeat**: sent every 30 seconds to keep the connection alive
// @Description
// @Description Each message is a JSON object with `event` (type + payload),
// @Description `timestamp` in milliseconds and a unique `id`.
// @Tags events
// @Accept text/event-stream
// @Produce text/event-stream
// @Success 200 {object} SSEMessage "SSE stream of events"
// @Router /v1/events [get]
func (h *EventsHandler) HandleSSE(c *fiber.Ctx) error {
	if ah := c.Get("Accept"); ah != "" && !strings.Contains(ah, "text/event-stream") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "This endpoint only accepts Server-Sent Events (text/event-stream)",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	ch := make(chan SSEMessage, 100)
	h.addClient(clientID, ch)
	logger.Infof("SSE client connected: %s from %s", clientID, c.IP())

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.removeClient(clientID)

		send := func(msg SSEMessage) bool {
			if msg.Event.Type == "" {
				return true
			}
			b, _ := json.Marshal(msg)
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				return false
			}
			return w.Flush() == nil
		}

		if !send(h.makeHeartbeat()) {
			return
		}

		tick := time.NewTicker(heartbeatInterval)
		defer tick.Stop()

		for {
			select {
			case msg, ok := <-ch:
				if !ok || !send(msg) {
					return
				}
			case <-tick.C:
				if !send(h.makeHeartbeat()) {
					return
				}
			}
		}
	}))

	return nil
}

func (h *EventsHandler) addClient(id string, ch chan SSEMessage) {
	h.clientsMux.Lock()
	h.clients[id] = ch
	h.clientsMux.Unlock()
}

func (h *EventsHandler) removeClient(id string) {
	h.clientsMux.Lock()
	if ch, ok := h.clients[id]; ok {
		close(ch)
		delete(h.clients, id)
	}
	h.clientsMux.Unlock()
	logger.Debugf("SSE client disconnected: %s", id)
}

func (h *EventsHandler) makeHeartbeat() SSEMessage {
	return SSEMessage{
		Event: AppEvent{
			Type: "heartbeat",
			Payload: HeartbeatPayload{
				Timestamp: time.Now().UnixMilli(),
				Uptime:    time.Since(h.startTime).Milliseconds(),
			},
		},
		Timestamp: time.Now().UnixMilli(),
		ID:        uuid.New().String(),
	}
}
