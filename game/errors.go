package game

import "errors"

// Board validation.
var (
	ErrEmptyBoard   = errors.New("board has no tiles")
	ErrNoPrisonTile = errors.New("board has no PRISON tile")
)

// Registry validation.
var (
	ErrDuplicatePlayer = errors.New("duplicate player id")
	ErrEmptyPlayerID   = errors.New("player id is empty")
	ErrTooManyPlayers  = errors.New("too many players")
	ErrUnknownPlayer   = errors.New("unknown player")
)

// Turn rejections. None of these change engine state.
var (
	ErrNoPlayers       = errors.New("no players seated")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrTurnInFlight    = errors.New("a turn is already being resolved")
	ErrInvalidRoll     = errors.New("roll must be between 1 and 6")
	ErrMustServePrison = errors.New("player must skip a prison turn")
	ErrNotInPrison     = errors.New("player is not in prison")
)

// ErrNoCards is returned when the board has CARD tiles but the catalog is empty.
var ErrNoCards = errors.New("board has CARD tiles but no card templates")
