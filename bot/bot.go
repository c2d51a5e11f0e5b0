// Package bot plays computer seats. A bot sees only what its own session
// sees and acts through the same intents as a person would.
package bot

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"monopolis-server/config"
	"monopolis-server/game"
)

// Seat is the part of a session a bot drives.
type Seat interface {
	IsMyTurn() bool
	TakeTurn(ctx context.Context) (int, error)
}

// Bot takes the turns of one seat with a human-like pause before each.
type Bot struct {
	params config.BotParams
	seat   Seat
	rng    *rand.Rand
	wake   chan struct{}
}

// New returns a bot for seat. Wire Wake into the session's OnApplied so the
// bot notices when the turn comes to it.
func New(seat Seat, params config.BotParams, rng *rand.Rand) *Bot {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Bot{params: params, seat: seat, rng: rng, wake: make(chan struct{}, 1)}
}

// Wake signals that the game state changed. It never blocks.
func (b *Bot) Wake(uint64) {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Run plays until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	for {
		if b.seat.IsMyTurn() {
			if !b.pause(ctx) {
				return
			}
			roll, err := b.seat.TakeTurn(ctx)
			switch {
			case err == nil:
				slog.Debug("bot took turn", "tag", "bot", "name", b.params.Name, "roll", roll)
			case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrTurnInFlight):
				// The state moved on during the pause.
			default:
				slog.Warn("bot turn failed", "tag", "bot", "name", b.params.Name, "err", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
	}
}

func (b *Bot) delay() time.Duration {
	ms := b.params.DelayMinMS
	if b.params.DelayMaxMS > b.params.DelayMinMS {
		ms += b.rng.Intn(b.params.DelayMaxMS - b.params.DelayMinMS)
	}
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms) * time.Millisecond
}

func (b *Bot) pause(ctx context.Context) bool {
	t := time.NewTimer(b.delay())
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
