package sse

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nibbleapp/nibble-server/internal/id"
)

const (
	queueSize       = 1000
	clientQueueSize = 100
)

// Client is one open event stream.
type Client struct {
	ID          string
	SessionKey  string
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}

	dropped atomic.Int64
}

// Dropped reports how many events the client missed because its queue was
// full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// Manager fans events out to the streams of the session they belong to.
// Clients are indexed by session key so delivery touches only the
// session's own streams.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]map[string]*Client // session key -> client ID -> client
	byID     map[string]*Client

	queue     chan Event
	heartbeat time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup

	// closeMu guards queue against sends after Shutdown closed it.
	closeMu sync.RWMutex
	closed  bool
}

// NewManager creates a new SSE Manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		sessions:  make(map[string]map[string]*Client),
		byID:      make(map[string]*Client),
		queue:     make(chan Event, queueSize),
		heartbeat: 30 * time.Second,
		logger:    logger,
	}
}

// Start runs the delivery loop until ctx is done or Shutdown closes the
// queue. Run it in its own goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	m.logger.Info("SSE manager starting")
	for {
		select {
		case event, ok := <-m.queue:
			if !ok {
				return
			}
			m.deliver(event)
		case <-ticker.C:
			m.deliver(NewHeartbeatEvent())
		case <-ctx.Done():
			m.logger.Info("SSE manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued, then closes
// every stream. Calling it twice is a no-op.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	drained := make(chan struct{})
	go func() {
		for event := range m.queue {
			m.deliver(event)
		}
		close(drained)
	}()

	select {
	case <-drained:
	case <-ctx.Done():
		m.logger.Warn("SSE drain timed out, queued events lost")
	}

	m.wg.Wait()
	m.closeAllClients()
	m.logger.Info("SSE manager shut down")
	return nil
}

// deliver routes an event to its session's clients, or to every client when
// the event has no session. A full client queue drops the event for that
// client only.
func (m *Manager) deliver(event Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	targets := m.byID
	if event.SessionKey != "" {
		targets = m.sessions[event.SessionKey]
	}

	var sent, dropped int
	for _, client := range targets {
		select {
		case client.EventChan <- event:
			sent++
		default:
			client.dropped.Add(1)
			dropped++
		}
	}

	if dropped > 0 {
		m.logger.Warn("SSE events dropped for slow clients",
			"event_type", event.Type,
			"session", event.SessionKey,
			"dropped", dropped)
	}
	if event.Type != EventHeartbeat {
		m.logger.Debug("SSE event delivered",
			"event_type", event.Type,
			"session", event.SessionKey,
			"sent", sent)
	}
}

// Connect opens a stream for a session.
func (m *Manager) Connect(sessionKey string) (*Client, error) {
	clientID, err := id.Generate("sse")
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		SessionKey:  sessionKey,
		ConnectedAt: time.Now(),
		EventChan:   make(chan Event, clientQueueSize),
		Done:        make(chan struct{}),
	}

	m.mu.Lock()
	streams := m.sessions[sessionKey]
	if streams == nil {
		streams = make(map[string]*Client)
		m.sessions[sessionKey] = streams
	}
	streams[clientID] = client
	m.byID[clientID] = client
	total := len(m.byID)
	m.mu.Unlock()

	m.logger.Info("SSE client connected",
		"client_id", clientID,
		"session", sessionKey,
		"total_clients", total)
	return client, nil
}

// Disconnect closes a stream. Unknown IDs are ignored.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.byID[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	m.remove(client)
	total := len(m.byID)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("SSE client disconnected",
		"client_id", clientID,
		"session", client.SessionKey,
		"connected_for", time.Since(client.ConnectedAt),
		"dropped", client.Dropped(),
		"total_clients", total)
}

// remove unlinks a client. Callers hold mu.
func (m *Manager) remove(client *Client) {
	delete(m.byID, client.ID)
	if streams := m.sessions[client.SessionKey]; streams != nil {
		delete(streams, client.ID)
		if len(streams) == 0 {
			delete(m.sessions, client.SessionKey)
		}
	}
}

// Emit queues an event. It never blocks: a full queue or a shut down
// manager drops the event.
func (m *Manager) Emit(event Event) {
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()

	if m.closed {
		return
	}
	select {
	case m.queue <- event:
	default:
		m.logger.Error("SSE queue full, dropping event", "event_type", event.Type)
	}
}

// ClientCount returns the number of open streams.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}

// SessionCount returns the number of sessions with at least one open
// stream.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.byID {
		close(client.Done)
		close(client.EventChan)
	}
	m.byID = make(map[string]*Client)
	m.sessions = make(map[string]map[string]*Client)
}
