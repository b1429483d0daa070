// Package stream pushes planner results to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"voxel-planner/internal/session"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 60 * time.Second
	pingInterval = readTimeout * 9 / 10
	clientBuffer = 16
)

// Message is the frame sent to clients whenever any planner result changes.
type Message struct {
	Type    string           `json:"type"`
	Tick    uint64           `json:"tick"`
	Results []session.Result `json:"results"`
}

// Hub is a session.Publisher that broadcasts changed results to every
// connected websocket client. Slow clients drop frames rather than stall the
// control loop.
type Hub struct {
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	// Clients that stay silent are kept alive by pings; the read deadline
	// moves forward with every pong.
	readTimeout  time.Duration
	pingInterval time.Duration

	mu      sync.Mutex
	clients map[uint64]chan []byte
	last    map[string]session.Result
	latest  []byte
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		readTimeout:  readTimeout,
		pingInterval: pingInterval,
		clients:      make(map[uint64]chan []byte),
		last:         make(map[string]session.Result),
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish broadcasts results when at least one of them changed.
func (h *Hub) Publish(_ context.Context, tick uint64, results []session.Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	changed := len(results) != len(h.last)
	for _, res := range results {
		prev, ok := h.last[res.Planner]
		if !ok || session.Changed(prev, res) {
			changed = true
		}
		h.last[res.Planner] = res
	}
	if !changed {
		return nil
	}

	b, err := json.Marshal(Message{Type: "tick", Tick: tick, Results: results})
	if err != nil {
		return fmt.Errorf("encode tick message: %w", err)
	}
	h.latest = b
	for id, out := range h.clients {
		select {
		case out <- b:
		default:
			log.Debug().Uint64("client", id).Uint64("tick", tick).Msg("stream client lagging, frame dropped")
		}
	}
	return nil
}

func (h *Hub) join() (uint64, chan []byte) {
	id := h.nextID.Add(1)
	out := make(chan []byte, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.latest != nil {
		out <- h.latest
	}
	h.clients[id] = out
	return id, out
}

func (h *Hub) leave(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Handler upgrades the request and streams messages until the client goes
// away.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()

		id, out := h.join()
		defer h.leave(id)
		log.Info().Uint64("client", id).Str("remote", r.RemoteAddr).Msg("stream client connected")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		_ = conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.readTimeout))
		})

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			ping := time.NewTicker(h.pingInterval)
			defer ping.Stop()
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ping.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
						writeErr <- err
						cancel()
						return
					}
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop only detects disconnects and processes pongs; client
		// frames are ignored.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(time.Second))

		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		log.Info().Uint64("client", id).Msg("stream client disconnected")
	}
}
