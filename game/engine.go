package game

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"
)

// Phase is the turn state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRolling
	PhaseResolving
)

// String returns the protocol string for a Phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRolling:
		return "rolling"
	case PhaseResolving:
		return "resolving"
	default:
		return "unknown"
	}
}

// Keys of the keepable cards the engine itself consumes.
const (
	ShieldKey     = "SHIELD"
	DoubleRollKey = "DOUBLE_ROLL"
)

// DefaultStepDelay is the pause between two unit steps of a move.
const DefaultStepDelay = 160 * time.Millisecond

// Presenter is the animation collaborator. Callbacks run on the goroutine
// applying the turn, outside the engine lock; the engine only waits at step
// boundaries.
type Presenter interface {
	PresentRoll(playerID string, value int)
	PresentStep(playerID string, position int)
	PresentCardDrawn(playerID string, card CardDef)
	PresentSkip(playerID string, remaining int)
}

// NopPresenter ignores every callback.
type NopPresenter struct{}

func (NopPresenter) PresentRoll(string, int)          {}
func (NopPresenter) PresentStep(string, int)          {}
func (NopPresenter) PresentCardDrawn(string, CardDef) {}
func (NopPresenter) PresentSkip(string, int)          {}

// Options tune an Engine. Zero values are usable.
type Options struct {
	StepDelay time.Duration
	Presenter Presenter
	// Seed drives every deck shuffle. Replicas of the same game must share it.
	Seed int64
}

// TurnKind tells a rolled turn from a skipped one.
type TurnKind string

const (
	TurnRolled  TurnKind = "ROLL"
	TurnSkipped TurnKind = "PRISON_SKIP"
)

// TurnResult describes one applied turn.
type TurnResult struct {
	Kind           TurnKind `json:"kind"`
	Turn           uint64   `json:"turn"`
	PlayerID       string   `json:"playerId"`
	Roll           int      `json:"roll,omitempty"`
	From           int      `json:"from"`
	To             int      `json:"to"`
	Tile           TileType `json:"tile"`
	CardKey        string   `json:"cardKey,omitempty"`
	CardDropped    bool     `json:"cardDropped,omitempty"`
	ShieldUsed     bool     `json:"shieldUsed,omitempty"`
	DoubleRollUsed bool     `json:"doubleRollUsed,omitempty"`
	PrisonLeft     int      `json:"prisonLeft"`
}

// Engine owns the registry, the deck and the turn cursor of one game.
// All mutation goes through ApplyRoll and ApplyPrisonSkip.
type Engine struct {
	mu sync.Mutex

	board   *Board
	deck    *Deck
	players *Registry

	turn    int
	turnSeq uint64
	phase   Phase

	stepDelay time.Duration
	presenter Presenter
}

// NewEngine seats players on board with a deck built from the provider's templates.
func NewEngine(board *Board, cards CardProvider, players []PlayerInfo, opts Options) (*Engine, error) {
	reg, err := NewRegistry(players)
	if err != nil {
		return nil, err
	}
	var templates []CardDef
	if cards != nil {
		templates = cards.AllCards()
	}
	if _, hasCardTile := board.FindFirstOfType(TileCard); hasCardTile && len(templates) == 0 {
		return nil, ErrNoCards
	}
	presenter := opts.Presenter
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &Engine{
		board:     board,
		deck:      NewDeck(templates, opts.Seed),
		players:   reg,
		stepDelay: opts.StepDelay,
		presenter: presenter,
	}, nil
}

// SeedFromRoom derives the shared deck seed from a room id.
func SeedFromRoom(roomID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(roomID))
	return int64(h.Sum64())
}

// RollDie returns a value in 1..6.
func RollDie(rng *rand.Rand) int {
	return rng.Intn(6) + 1
}

// RollFor is the authoritative roll for p: two dice keeping the higher one
// while p holds DOUBLE_ROLL, one die otherwise.
func RollFor(p Player, rng *rand.Rand) int {
	v := RollDie(rng)
	if p.HasDoubleRoll {
		if w := RollDie(rng); w > v {
			v = w
		}
	}
	return v
}

// Board returns the ring the engine plays on.
func (e *Engine) Board() *Board {
	return e.board
}

// Phase returns the current state machine position.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// TurnSeq counts completed turns, rolled or skipped.
func (e *Engine) TurnSeq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.turnSeq
}

// CurrentPlayer returns a copy of the player holding the turn.
func (e *Engine) CurrentPlayer() (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.players.Len() == 0 {
		return Player{}, false
	}
	return e.players.At(e.turn).clone(), true
}

// Player returns a copy of the player with the given id.
func (e *Engine) Player(id string) (Player, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.players.ByID(id)
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

// Players returns copies of every seat in turn order.
func (e *Engine) Players() []Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Player, e.players.Len())
	for i := range out {
		out[i] = e.players.At(i).clone()
	}
	return out
}

// Seats returns the lobby view of the seats.
func (e *Engine) Seats() []PlayerInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.players.Infos()
}

// checkTurn must be called with e.mu held.
func (e *Engine) checkTurn(playerID string) (*Player, int, error) {
	if e.players.Len() == 0 {
		return nil, 0, ErrNoPlayers
	}
	if e.phase != PhaseIdle {
		return nil, 0, ErrTurnInFlight
	}
	cur := e.players.At(e.turn)
	if cur.ID != playerID {
		if _, ok := e.players.ByID(playerID); !ok {
			return nil, 0, fmt.Errorf("%q: %w", playerID, ErrUnknownPlayer)
		}
		return nil, 0, ErrNotYourTurn
	}
	return cur, e.turn, nil
}

// ApplyRoll moves the current player value steps, resolves the landing tile
// and passes the turn. A rejected roll leaves the state untouched.
//
// Cancelling ctx only drops the remaining step delays: every step and the
// resolution still run, so resolution never sees a stale position.
func (e *Engine) ApplyRoll(ctx context.Context, playerID string, value int) (TurnResult, error) {
	e.mu.Lock()
	p, seat, err := e.checkTurn(playerID)
	if err != nil {
		e.mu.Unlock()
		return TurnResult{}, err
	}
	if value < 1 || value > 6 {
		e.mu.Unlock()
		return TurnResult{}, fmt.Errorf("%d: %w", value, ErrInvalidRoll)
	}
	if p.PrisonTurnsRemaining > 0 {
		e.mu.Unlock()
		return TurnResult{}, ErrMustServePrison
	}
	e.phase = PhaseRolling
	res := TurnResult{Kind: TurnRolled, Turn: e.turnSeq, PlayerID: playerID, Roll: value, From: p.Position}
	if p.HasDoubleRoll {
		p.consume(DoubleRollKey)
		p.HasDoubleRoll = p.Holds(DoubleRollKey)
		res.DoubleRollUsed = true
	}
	e.mu.Unlock()

	e.presenter.PresentRoll(playerID, value)
	for i := 0; i < value; i++ {
		e.mu.Lock()
		p.Position = e.board.Normalize(p.Position + 1)
		pos := p.Position
		e.mu.Unlock()

		e.presenter.PresentStep(playerID, pos)
		if ctx.Err() == nil {
			waitStep(ctx, e.stepDelay)
		}
	}

	e.mu.Lock()
	e.phase = PhaseResolving
	drawn := e.resolveTile(p, seat, &res)
	res.To = p.Position
	res.PrisonLeft = p.PrisonTurnsRemaining
	e.advance()
	e.mu.Unlock()

	if drawn != nil {
		e.presenter.PresentCardDrawn(playerID, *drawn)
	}
	return res, nil
}

// ApplyPrisonSkip spends one prison turn of the current player and passes the turn.
func (e *Engine) ApplyPrisonSkip(playerID string) (TurnResult, error) {
	e.mu.Lock()
	p, _, err := e.checkTurn(playerID)
	if err != nil {
		e.mu.Unlock()
		return TurnResult{}, err
	}
	if p.PrisonTurnsRemaining == 0 {
		e.mu.Unlock()
		return TurnResult{}, ErrNotInPrison
	}
	p.PrisonTurnsRemaining--
	res := TurnResult{
		Kind:       TurnSkipped,
		Turn:       e.turnSeq,
		PlayerID:   playerID,
		From:       p.Position,
		To:         p.Position,
		Tile:       e.board.TileAt(p.Position).Type,
		PrisonLeft: p.PrisonTurnsRemaining,
	}
	e.advance()
	e.mu.Unlock()

	e.presenter.PresentSkip(playerID, res.PrisonLeft)
	return res, nil
}

// advance must be called with e.mu held.
func (e *Engine) advance() {
	e.turn = (e.turn + 1) % e.players.Len()
	e.turnSeq++
	e.phase = PhaseIdle
}

func waitStep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
