package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"monopolis-server/cards"
	"monopolis-server/config"
	"monopolis-server/game"
	"monopolis-server/session"
)

// Errors returned when setting up a table.
var (
	ErrNoBotProfiles = errors.New("no bot profiles configured")
	ErrBotSeat       = errors.New("seat is played by a bot")
)

// Table is a pass-and-play game on one device. People and computer seats
// share an in-process relay; computer seats take their profiles from
// cfg.Bots in order, cycling when there are more seats than profiles.
type Table struct {
	RoomID  string
	Players []game.PlayerInfo

	cfg   *config.Config
	hub   *session.LocalHub
	board *game.Board
	bots  map[string]*session.Session
}

// NewTable opens roomID with people first in turn order, then the given
// number of computer seats, and starts the bots. Bots stop with ctx.
func NewTable(ctx context.Context, cfg *config.Config, roomID string, people []game.PlayerInfo, computers int) (*Table, error) {
	if computers > 0 && len(cfg.Bots) == 0 {
		return nil, ErrNoBotProfiles
	}
	players := append([]game.PlayerInfo{}, people...)
	profiles := make(map[string]config.BotParams, computers)
	for i := 0; i < computers; i++ {
		params := cfg.Bots[i%len(cfg.Bots)]
		id := fmt.Sprintf("cpu-%d", i+1)
		players = append(players, game.PlayerInfo{ID: id, Name: params.Name})
		profiles[id] = params
	}

	board := game.DefaultBoard()
	hub := session.NewLocalHub(ctx, board, cards.Standard())
	if err := hub.CreateRoom(ctx, roomID, players); err != nil {
		return nil, err
	}
	t := &Table{
		RoomID:  roomID,
		Players: players,
		cfg:     cfg,
		hub:     hub,
		board:   board,
		bots:    make(map[string]*session.Session, computers),
	}

	for _, p := range players[len(people):] {
		if err := t.startBot(ctx, p.ID, profiles[p.ID]); err != nil {
			return nil, err
		}
	}
	slog.Info("table ready", "tag", "bot", "room", roomID, "people", len(people), "bots", computers)
	return t, nil
}

func (t *Table) startBot(ctx context.Context, playerID string, params config.BotParams) error {
	var b *Bot
	opts := session.DefaultOptions(t.cfg)
	opts.OnApplied = func(seq uint64) { b.Wake(seq) }
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(len(t.bots))))
	opts.RNG = rng

	s, err := session.InitializeSession(t.RoomID, t.Players, playerID, t.board, cards.Standard(), t.hub.Transport(), opts)
	if err != nil {
		return err
	}
	b = New(s, params, rng)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	go s.Run(ctx)
	go b.Run(ctx)
	t.bots[playerID] = s
	return nil
}

// Seat connects a person's seat. The caller runs the returned session.
func (t *Table) Seat(ctx context.Context, playerID string, opts session.Options) (*session.Session, error) {
	if _, ok := t.bots[playerID]; ok {
		return nil, fmt.Errorf("%q: %w", playerID, ErrBotSeat)
	}
	s, err := session.InitializeSession(t.RoomID, t.Players, playerID, t.board, cards.Standard(), t.hub.Transport(), opts)
	if err != nil {
		return nil, err
	}
	if err := s.Connect(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// IsBot reports whether playerID is a computer seat.
func (t *Table) IsBot(playerID string) bool {
	_, ok := t.bots[playerID]
	return ok
}

// Hub exposes the relay behind the table.
func (t *Table) Hub() *session.LocalHub {
	return t.hub
}
