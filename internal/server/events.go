package server

import (
	"net/http"
	"sync"
	"time"

	"squad-planner/internal/auth"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Change event types pushed to dashboard clients. Clients refetch the
// resource named by the event instead of receiving its body.
const (
	EventHello             = "hello"
	EventPlayerSaved       = "player.saved"
	EventPlayerRenamed     = "player.renamed"
	EventPlayerDeleted     = "player.deleted"
	EventThresholdsSaved   = "settings.thresholds"
	EventAtlantisSaved     = "settings.atlantis"
	EventTiersPublished    = "tiers.published"
	EventFormationSettings = "formation.settings"
	EventFormationCounts   = "formation.counts"
)

const (
	eventBuffer       = 32
	eventWriteTimeout = 10 * time.Second
)

type Event struct {
	Type string    `json:"type"`
	Key  string    `json:"key,omitempty"`
	From string    `json:"from,omitempty"`
	At   time.Time `json:"at"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Hub fans change events out to every connected websocket client. A client
// that cannot keep up with its buffer is disconnected.
type Hub struct {
	mu       sync.Mutex
	clients  map[*subscriber]struct{}
	closed   bool
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*subscriber]struct{}),
		// events carry keys only, so any dashboard origin may listen
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger,
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{
		conn: conn,
		send: make(chan Event, eventBuffer),
		done: make(chan struct{}),
	}
	sub.send <- Event{Type: EventHello, At: time.Now().UTC()}

	if !h.add(sub) {
		sub.close()
		return
	}
	h.logger.Debug().Str("remote_addr", r.RemoteAddr).Int("clients", h.Len()).Msg("websocket client connected")

	go h.writeLoop(sub)
	go h.readLoop(sub)
}

// Broadcast queues ev for every client without blocking.
func (h *Hub) Broadcast(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.clients {
		select {
		case sub.send <- ev:
		default:
			h.logger.Warn().Str("event", ev.Type).Msg("dropping slow websocket client")
			delete(h.clients, sub)
			sub.close()
		}
	}
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.clients {
		delete(h.clients, sub)
		sub.close()
	}
}

func (h *Hub) add(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[sub] = struct{}{}
	return true
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.clients, sub)
	h.mu.Unlock()
	sub.close()
}

func (h *Hub) writeLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		select {
		case <-sub.done:
			return
		case ev := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := sub.conn.WriteJSON(ev); err != nil {
				h.logger.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

// readLoop discards client messages and notices when the peer goes away.
func (h *Hub) readLoop(sub *subscriber) {
	defer h.remove(sub)
	for {
		if _, _, err := sub.conn.NextReader(); err != nil {
			return
		}
	}
}

func (s *PlannerServer) notify(r *http.Request, typ, key string) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(Event{Type: typ, Key: key, From: auth.ActorFrom(r.Context()).Email})
}
