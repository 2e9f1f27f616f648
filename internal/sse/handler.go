package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// writeTimeout bounds each frame write; it is pushed forward after every
// flush so idle streams stay open between heartbeats.
const writeTimeout = 60 * time.Second

// SessionResolver returns the session key for a request, or an error when
// the request carries no usable session.
type SessionResolver func(r *http.Request) (string, error)

// Handler serves GET /api/v1/events. Heartbeats come from the Manager, so
// the handler only relays what arrives on the client's channel.
type Handler struct {
	manager *Manager
	resolve SessionResolver
	logger  *slog.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(manager *Manager, resolve SessionResolver, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, resolve: resolve, logger: logger}
}

// stream writes SSE frames to one response.
type stream struct {
	w      http.ResponseWriter
	rc     *http.ResponseController
	logger *slog.Logger
}

func (s *stream) send(name string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s frame: %w", name, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, body); err != nil {
		return err
	}
	if err := s.rc.Flush(); err != nil {
		return err
	}
	if err := s.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		s.logger.Debug("write deadline unsupported", "error", err)
	}
	return nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx := r.Context()
	if ctx.Err() != nil {
		return
	}

	sessionKey, err := h.resolve(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	header := w.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")

	out := &stream{w: w, rc: http.NewResponseController(w), logger: h.logger}
	if err := out.rc.Flush(); err != nil {
		h.logger.Error("response does not support streaming", "error", err)
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(sessionKey)
	if err != nil {
		h.logger.Error("SSE connect failed", "error", err)
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With("client_id", client.ID)
	out.logger = log

	if err := out.send("connected", map[string]string{
		"client_id": client.ID,
		"message":   "SSE connection established",
	}); err != nil {
		log.Warn("initial SSE frame failed", "error", err)
		return
	}

	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				log.Info("SSE stream closed by manager")
				return
			}
			if err := out.send(string(event.Type), event); err != nil {
				log.Info("SSE client went away", "event_type", event.Type)
				return
			}
		case <-client.Done:
			log.Info("SSE stream closed by manager")
			return
		case <-ctx.Done():
			log.Debug("SSE request context done")
			return
		}
	}
}
