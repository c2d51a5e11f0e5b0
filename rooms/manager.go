package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"monopolis-server/config"
	"monopolis-server/eventlog"
	"monopolis-server/game"
	"monopolis-server/roomerrors"
	"monopolis-server/storage"
)

// Manager owns the live rooms of this relay.
type Manager struct {
	ctx   context.Context
	cfg   *config.Config
	board *game.Board
	cards game.CardProvider

	events eventlog.Log
	store  storage.HistoryStore

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewManager creates a Manager. Rooms it creates run until ctx is cancelled
// or they go idle. store may be nil.
func NewManager(ctx context.Context, cfg *config.Config, board *game.Board, cards game.CardProvider, events eventlog.Log, store storage.HistoryStore) *Manager {
	return &Manager{
		ctx:    ctx,
		cfg:    cfg,
		board:  board,
		cards:  cards,
		events: events,
		store:  store,
		rooms:  make(map[string]*Room),
	}
}

// Create starts a room for the finalized player list handed over by the
// lobby. An empty roomID gets a generated one.
func (m *Manager) Create(ctx context.Context, roomID string, players []game.PlayerInfo) (*Room, error) {
	if err := m.validate(players); err != nil {
		return nil, err
	}
	if roomID == "" {
		roomID = uuid.NewString()
	}
	seed := game.SeedFromRoom(roomID)
	referee, err := game.NewEngine(m.board, m.cards, players, game.Options{Seed: seed})
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.rooms[roomID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", roomID, roomerrors.ErrRoomExists)
	}
	room := newRoom(roomID, seed, referee, m.events, m.store, m.cfg.RoomIdleTimeout())
	room.OnClose = m.remove
	m.rooms[roomID] = room
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.InsertSession(ctx, roomID, players, seed); err != nil {
			slog.Warn("persist session failed", "tag", "rooms", "room", roomID, "err", err)
		}
	}
	go room.Run(m.ctx)
	slog.Info("room created", "tag", "rooms", "room", roomID, "players", len(players))
	return room, nil
}

func (m *Manager) validate(players []game.PlayerInfo) error {
	limit := m.cfg.MaxPlayers
	if limit <= 0 || limit > game.MaxPlayers {
		limit = game.MaxPlayers
	}
	if len(players) == 0 {
		return game.ErrNoPlayers
	}
	if len(players) > limit {
		return fmt.Errorf("%d players, limit %d: %w", len(players), limit, game.ErrTooManyPlayers)
	}
	for _, p := range players {
		if m.cfg.MaxNameLength > 0 && len([]rune(p.Name)) > m.cfg.MaxNameLength {
			return fmt.Errorf("%q: %w", p.Name, roomerrors.ErrNameTooLong)
		}
	}
	return nil
}

// Get returns a live room.
func (m *Manager) Get(roomID string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", roomID, roomerrors.ErrRoomNotFound)
	}
	return room, nil
}

// Join seats a connection in a live room.
func (m *Manager) Join(ctx context.Context, roomID, playerID string, send chan []byte, lastSeq uint64) (*Room, error) {
	room, err := m.Get(roomID)
	if err != nil {
		return nil, err
	}
	if err := room.Join(ctx, playerID, send, lastSeq); err != nil {
		return nil, err
	}
	return room, nil
}

// Len returns the number of live rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) remove(roomID string, idle bool) {
	m.mu.Lock()
	delete(m.rooms, roomID)
	m.mu.Unlock()
	if idle {
		if err := m.events.Delete(context.Background(), roomID); err != nil {
			slog.Warn("event log cleanup failed", "tag", "rooms", "room", roomID, "err", err)
		}
	}
	slog.Info("room closed", "tag", "rooms", "room", roomID, "idle", idle)
}
