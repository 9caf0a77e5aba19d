package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// wireEvent is the envelope written to websocket clients
type wireEvent struct {
	Type      string `json:"type"`
	Seq       int64  `json:"seq"`
	Timestamp int64  `json:"timestamp"`
	Event     Event  `json:"event"`
}

// Broadcaster is a Sink that streams progress events to websocket clients.
// It is the transport used by the reference daemon; embedders are free to
// supply their own Sink instead.
type Broadcaster struct {
	upgrader websocket.Upgrader
	logger   zerolog.Logger
	seq      uint64

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex // serializes writes, gorilla conns allow one writer
}

// NewBroadcaster creates a websocket event broadcaster
func NewBroadcaster(logger zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger:  logger.With().Str("component", "event-broadcaster").Logger(),
		clients: make(map[*wsClient]struct{}),
	}
}

// ServeHTTP upgrades the request to a websocket and registers the client
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	client := &wsClient{conn: conn}
	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	b.logger.Info().Int("clients", count).Msg("Progress client connected")

	// Drain reads so pings and close frames are processed; drop the client
	// when the connection dies.
	go func() {
		defer b.remove(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Emit implements Sink, writing the event to every connected client
func (b *Broadcaster) Emit(ev Event) {
	msg := wireEvent{
		Type:      "action_progress",
		Seq:       int64(atomic.AddUint64(&b.seq, 1)),
		Timestamp: time.Now().UnixMilli(),
		Event:     ev,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Str("action_id", ev.ActionID).Msg("Failed to marshal event")
		return
	}

	b.mu.Lock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.Unlock()

	for _, client := range clients {
		client.mu.Lock()
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			b.logger.Warn().Err(err).Msg("Failed to write to progress client")
			b.remove(client)
		}
	}
}

// Close disconnects all clients
func (b *Broadcaster) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for client := range b.clients {
		_ = client.conn.Close()
		delete(b.clients, client)
	}
	return nil
}

func (b *Broadcaster) remove(client *wsClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[client]; ok {
		_ = client.conn.Close()
		delete(b.clients, client)
	}
}

var _ Sink = (*Broadcaster)(nil)
