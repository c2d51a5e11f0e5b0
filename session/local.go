package session

import (
	"context"
	"fmt"
	"sync"

	"monopolis-server/config"
	"monopolis-server/eventlog"
	"monopolis-server/game"
	"monopolis-server/protocol"
	"monopolis-server/rooms"
)

// LocalHub is an in-process relay for pass-and-play and tests. It runs the
// same room sequencer as the server, without sockets.
type LocalHub struct {
	rooms *rooms.Manager
}

// NewLocalHub starts an in-process relay whose rooms stop with ctx.
func NewLocalHub(ctx context.Context, board *game.Board, cards game.CardProvider) *LocalHub {
	cfg := config.Defaults()
	cfg.RoomIdleTimeoutSec = 0
	return &LocalHub{rooms: rooms.NewManager(ctx, cfg, board, cards, eventlog.NewMemory(cfg.EventLogCapacity), nil)}
}

// CreateRoom opens a room for the finalized player list.
func (h *LocalHub) CreateRoom(ctx context.Context, roomID string, players []game.PlayerInfo) error {
	_, err := h.rooms.Create(ctx, roomID, players)
	return err
}

// Rooms exposes the underlying manager.
func (h *LocalHub) Rooms() *rooms.Manager {
	return h.rooms
}

// Transport returns a new, unconnected transport into the hub.
func (h *LocalHub) Transport() Transport {
	return &localTransport{hub: h}
}

type localTransport struct {
	hub *LocalHub

	mu       sync.Mutex
	room     *rooms.Room
	playerID string
	send     chan []byte
}

func (t *localTransport) Connect(ctx context.Context, hello protocol.HelloMsg) (<-chan []byte, error) {
	t.Close()
	send := make(chan []byte, inboundBuffer)
	room, err := t.hub.rooms.Join(ctx, hello.RoomID, hello.PlayerID, send, hello.LastSeq)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.room, t.playerID, t.send = room, hello.PlayerID, send
	t.mu.Unlock()
	return send, nil
}

func (t *localTransport) Send(ctx context.Context, msg any) error {
	t.mu.Lock()
	room, playerID := t.room, t.playerID
	t.mu.Unlock()
	if room == nil {
		return ErrNotConnected
	}
	switch m := msg.(type) {
	case protocol.Event:
		return room.Submit(ctx, playerID, m)
	case protocol.ResumeMsg:
		return room.Resume(ctx, playerID, m.LastSeq, m.Full)
	default:
		return fmt.Errorf("local transport cannot send %T", msg)
	}
}

// Close releases the seat and ends the inbound stream. The room may still
// hold the channel briefly; its sends tolerate a closed channel.
func (t *localTransport) Close() error {
	t.mu.Lock()
	room, playerID, send := t.room, t.playerID, t.send
	t.room, t.send = nil, nil
	t.mu.Unlock()
	if room == nil {
		return nil
	}
	room.Leave(playerID, send)
	close(send)
	return nil
}
