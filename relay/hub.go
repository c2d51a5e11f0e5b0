// Package relay is the websocket edge of the relay server. It authenticates
// the hello of each connection, seats it in its room and forwards turn
// events; the room does the sequencing.
package relay

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"monopolis-server/auth"
	"monopolis-server/config"
	"monopolis-server/rooms"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Devices connect from native apps, not browsers.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RoomJoiner is what the Hub needs from the room manager.
type RoomJoiner interface {
	Join(ctx context.Context, roomID, playerID string, send chan []byte, lastSeq uint64) (*rooms.Room, error)
}

// Hub tracks live connections and releases their seats on disconnect.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Rooms      RoomJoiner
	// Verifier checks hello tokens. Nil accepts any hello.
	Verifier *auth.Verifier
	Config   *config.Config

	// Done is closed once Run has returned.
	Done chan struct{}
}

// NewHub creates a new Hub.
func NewHub(cfg *config.Config, rooms RoomJoiner, verifier *auth.Verifier) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Rooms:      rooms,
		Verifier:   verifier,
		Config:     cfg,
		Done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.Done)
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "hub", "clients", len(h.Clients))
			for client := range h.Clients {
				close(client.Send)
			}
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Debug("client connected", "tag", "hub", "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				if client.Room != nil {
					client.Room.Leave(client.PlayerID, client.Send)
				}
				close(client.Send)
				slog.Debug("client disconnected", "tag", "hub", "player", client.PlayerID, "clients", len(h.Clients))
			}
		}
	}
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "hub", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	select {
	case h.Register <- client:
	case <-h.Done:
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
