package calendar

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// subscriberBuffer is how many undelivered messages a slow subscriber may
// queue before further messages to it are dropped.
const subscriberBuffer = 64

// Hub fans turn results out to websocket subscribers of each calendar. It
// implements Publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]chan []byte // calendar -> subscriber id -> outbox

	upgrader websocket.Upgrader
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 16 * 1024,
		},
	}
}

// Publish queues a result for every subscriber of the calendar. Subscribers
// whose outbox is full miss the message.
func (h *Hub) Publish(calendar string, res *TurnResult) {
	msg, err := json.Marshal(res)
	if err != nil {
		slog.Error("encoding turn result", slog.String("calendar", calendar), slog.Any("error", err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, out := range h.subs[calendar] {
		select {
		case out <- msg:
		default:
			slog.Warn("dropping message for slow subscriber",
				slog.String("calendar", calendar),
				slog.String("subscriber", id),
			)
		}
	}
}

// Subscribe registers a new subscriber and returns its id and outbox.
func (h *Hub) Subscribe(calendar string) (string, <-chan []byte) {
	id := uuid.NewString()
	out := make(chan []byte, subscriberBuffer)
	h.mu.Lock()
	if h.subs[calendar] == nil {
		h.subs[calendar] = make(map[string]chan []byte)
	}
	h.subs[calendar][id] = out
	h.mu.Unlock()
	return id, out
}

// Unsubscribe removes a subscriber and closes its outbox.
func (h *Hub) Unsubscribe(calendar, id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if out, ok := h.subs[calendar][id]; ok {
		delete(h.subs[calendar], id)
		close(out)
		if len(h.subs[calendar]) == 0 {
			delete(h.subs, calendar)
		}
	}
}

// Subscribers returns the number of subscribers of a calendar.
func (h *Hub) Subscribers(calendar string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[calendar])
}

// Serve upgrades the request and streams the calendar's turn results until
// the client goes away. Client messages are read only to notice the close.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, calendar string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	id, out := h.Subscribe(calendar)
	defer h.Unsubscribe(calendar, id)
	slog.Debug("feed subscriber joined", slog.String("calendar", calendar), slog.String("subscriber", id))

	const readTimeout = 90 * time.Second
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return nil
		case msg, ok := <-out:
			if !ok {
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return nil
			}
		}
	}
}
