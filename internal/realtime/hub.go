package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	id "aegis/pkg/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 512
	sendBuffer     = 16
)

// Hub fans lifecycle updates out to a user's connected clients over
// websockets. A phone that raised an SOS and a desktop watching the incident
// both subscribe to the same user stream.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	subscribers map[id.UserID]map[*subscriber]struct{}
	closed      bool
}

type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

type Option func(*Hub)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = logger
	}
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		logger:      slog.New(slog.DiscardHandler),
		subscribers: make(map[id.UserID]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers send an Origin header; the JWT on the upgrade
			// request is the real gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeWS upgrades the request and subscribes the connection to the user's
// stream until the peer goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID id.UserID) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return errors.New("hub is closed")
	}
	byUser, ok := h.subscribers[userID]
	if !ok {
		byUser = make(map[*subscriber]struct{})
		h.subscribers[userID] = byUser
	}
	byUser[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("realtime subscriber connected", "user_id", userID)

	go h.writePump(sub)
	go h.readPump(sub, userID)
	return nil
}

// Publish sends the payload to every connection the user has open. Slow
// consumers are dropped rather than allowed to stall the others.
func (h *Hub) Publish(ctx context.Context, userID id.UserID, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// Sends happen under the read lock and closes under the write lock, so
	// a send can never race a close.
	h.mu.RLock()
	var dropped []*subscriber
	for sub := range h.subscribers[userID] {
		select {
		case sub.send <- data:
		default:
			dropped = append(dropped, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range dropped {
		h.logger.Warn("dropping slow realtime subscriber", "user_id", userID)
		h.unsubscribe(userID, sub)
	}
	return nil
}

// SubscriberCount reports how many connections the user has open.
func (h *Hub) SubscriberCount(userID id.UserID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close disconnects everyone. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*subscriber
	for _, byUser := range h.subscribers {
		for sub := range byUser {
			all = append(all, sub)
		}
	}
	h.subscribers = make(map[id.UserID]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range all {
		close(sub.send)
	}
}

func (h *Hub) unsubscribe(userID id.UserID, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	byUser, ok := h.subscribers[userID]
	if !ok {
		return
	}
	if _, ok := byUser[sub]; !ok {
		return
	}
	delete(byUser, sub)
	if len(byUser) == 0 {
		delete(h.subscribers, userID)
	}
	close(sub.send)
}

// writePump drains the send channel onto the wire and keeps the connection
// alive with pings. It exits when the send channel closes.
func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes (and discards) inbound frames so pongs and close frames
// are processed, then unsubscribes on error.
func (h *Hub) readPump(sub *subscriber, userID id.UserID) {
	defer h.unsubscribe(userID, sub)

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}
