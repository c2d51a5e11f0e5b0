package game

import (
	"fmt"
)

// Snapshot is the full replicated state of a game. Two engines that have
// applied the same events produce equal snapshots.
type Snapshot struct {
	Turn    int       `json:"turn"`
	TurnSeq uint64    `json:"turnSeq"`
	Players []Player  `json:"players"`
	Deck    DeckState `json:"deck"`
}

// CurrentPlayerID returns the id holding the turn, or "" when nobody is seated.
func (s Snapshot) CurrentPlayerID() string {
	if s.Turn < 0 || s.Turn >= len(s.Players) {
		return ""
	}
	return s.Players[s.Turn].ID
}

// Snapshot copies the engine state. Callers get no aliasing into the engine.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	players := make([]Player, e.players.Len())
	for i := range players {
		players[i] = e.players.At(i).clone()
	}
	return Snapshot{
		Turn:    e.turn,
		TurnSeq: e.turnSeq,
		Players: players,
		Deck:    e.deck.state(),
	}
}

// Restore replaces the engine state with s. The seats in s must match the
// engine's seats in order; a mismatch leaves the engine unchanged.
func (e *Engine) Restore(s Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.phase != PhaseIdle {
		return ErrTurnInFlight
	}
	if len(s.Players) != e.players.Len() {
		return fmt.Errorf("snapshot has %d seats, engine has %d: %w", len(s.Players), e.players.Len(), ErrUnknownPlayer)
	}
	for i, p := range s.Players {
		if e.players.At(i).ID != p.ID {
			return fmt.Errorf("seat %d is %q in snapshot: %w", i, p.ID, ErrUnknownPlayer)
		}
	}
	if len(s.Players) > 0 && (s.Turn < 0 || s.Turn >= len(s.Players)) {
		return fmt.Errorf("turn cursor %d out of range: %w", s.Turn, ErrUnknownPlayer)
	}
	if err := e.deck.restore(s.Deck); err != nil {
		return err
	}
	for i, p := range s.Players {
		*e.players.At(i) = p.clone()
	}
	e.turn = s.Turn
	e.turnSeq = s.TurnSeq
	return nil
}
