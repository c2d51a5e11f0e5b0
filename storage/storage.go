package storage

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"monopolis-server/game"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS game_session (
	room_id    TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	players    JSONB NOT NULL,
	deck_seed  BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS turn_log (
	room_id        TEXT NOT NULL REFERENCES game_session(room_id),
	seq            BIGINT NOT NULL,
	turn           BIGINT NOT NULL,
	player_id      TEXT NOT NULL,
	event_type     TEXT NOT NULL,
	roll           SMALLINT NOT NULL DEFAULT 0,
	from_pos       SMALLINT NOT NULL,
	to_pos         SMALLINT NOT NULL,
	tile           TEXT NOT NULL,
	card_key       TEXT NOT NULL DEFAULT '',
	shield_used    BOOLEAN NOT NULL DEFAULT false,
	shot_count     INT NOT NULL,
	task_count     INT NOT NULL,
	prison_turns   INT NOT NULL,
	applied_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (room_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_turn_log_player ON turn_log(room_id, player_id);
`

// Store persists game sessions and their turn history in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and ensures the tables exist.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// InsertSession records a room handed over by the lobby. Re-inserting the same room is a no-op.
func (s *Store) InsertSession(ctx context.Context, roomID string, players []game.PlayerInfo, seed int64) error {
	if s == nil || s.pool == nil {
		return nil
	}
	data, err := json.Marshal(players)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO game_session (room_id, players, deck_seed) VALUES ($1, $2, $3)
		ON CONFLICT (room_id) DO NOTHING`,
		roomID, data, seed)
	return err
}

// TurnRecord is one applied turn with the turn player's counters afterwards.
type TurnRecord struct {
	RoomID      string `json:"room_id"`
	Seq         uint64 `json:"seq"`
	Turn        uint64 `json:"turn"`
	PlayerID    string `json:"player_id"`
	EventType   string `json:"event_type"`
	Roll        int    `json:"roll"`
	From        int    `json:"from"`
	To          int    `json:"to"`
	Tile        string `json:"tile"`
	CardKey     string `json:"card_key,omitempty"`
	ShieldUsed  bool   `json:"shield_used"`
	ShotCount   int    `json:"shot_count"`
	TaskCount   int    `json:"task_count"`
	PrisonTurns int    `json:"prison_turns"`
	AppliedAt   string `json:"applied_at,omitempty"` // ISO8601, set when read back
}

// NewTurnRecord builds the row for an applied turn. after is the turn
// player's state once the turn resolved.
func NewTurnRecord(roomID string, seq uint64, res game.TurnResult, after game.Player) TurnRecord {
	return TurnRecord{
		RoomID:      roomID,
		Seq:         seq,
		Turn:        res.Turn,
		PlayerID:    res.PlayerID,
		EventType:   string(res.Kind),
		Roll:        res.Roll,
		From:        res.From,
		To:          res.To,
		Tile:        res.Tile.String(),
		CardKey:     res.CardKey,
		ShieldUsed:  res.ShieldUsed,
		ShotCount:   after.ShotCount,
		TaskCount:   after.TaskCount,
		PrisonTurns: after.PrisonTurnsRemaining,
	}
}

// InsertTurn appends a turn to the history. A replayed seq is ignored.
func (s *Store) InsertTurn(ctx context.Context, r TurnRecord) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO turn_log (room_id, seq, turn, player_id, event_type, roll, from_pos, to_pos, tile, card_key, shield_used, shot_count, task_count, prison_turns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (room_id, seq) DO NOTHING`,
		r.RoomID, int64(r.Seq), int64(r.Turn), r.PlayerID, r.EventType, r.Roll, r.From, r.To, r.Tile, r.CardKey, r.ShieldUsed, r.ShotCount, r.TaskCount, r.PrisonTurns)
	return err
}

// ListTurns returns a room's turns ordered by seq, with optional limit and offset.
func (s *Store) ListTurns(ctx context.Context, roomID string, limit, offset int) ([]TurnRecord, error) {
	if s == nil || s.pool == nil {
		return []TurnRecord{}, nil
	}
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT seq, turn, player_id, event_type, roll, from_pos, to_pos, tile, card_key, shield_used, shot_count, task_count, prison_turns, applied_at
		FROM turn_log
		WHERE room_id = $1
		ORDER BY seq
		LIMIT $2 OFFSET $3`,
		roomID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TurnRecord{}
	for rows.Next() {
		r := TurnRecord{RoomID: roomID}
		var seq, turn int64
		var appliedAt time.Time
		if err := rows.Scan(&seq, &turn, &r.PlayerID, &r.EventType, &r.Roll, &r.From, &r.To, &r.Tile, &r.CardKey, &r.ShieldUsed, &r.ShotCount, &r.TaskCount, &r.PrisonTurns, &appliedAt); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.Turn = uint64(turn)
		r.AppliedAt = appliedAt.UTC().Format(time.RFC3339)
		out = append(out, r)
	}
	return out, rows.Err()
}

const maxPage = 500

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > maxPage {
		limit = maxPage
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
