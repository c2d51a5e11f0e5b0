package storage

import (
	"context"

	"monopolis-server/game"
)

// HistoryStore abstracts persistence for sessions and turn history.
// Implementations can be swapped for testing (mocks) or different backends.
type HistoryStore interface {
	InsertSession(ctx context.Context, roomID string, players []game.PlayerInfo, seed int64) error
	InsertTurn(ctx context.Context, r TurnRecord) error
	ListTurns(ctx context.Context, roomID string, limit, offset int) ([]TurnRecord, error)
	Close()
}

// Ensure *Store implements HistoryStore at compile time.
var _ HistoryStore = (*Store)(nil)
