package protocol

import (
	"errors"

	"monopolis-server/game"
)

// CodeFor maps an engine rejection to its wire code.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, game.ErrNotYourTurn), errors.Is(err, game.ErrUnknownPlayer):
		return CodeNotYourTurn
	case errors.Is(err, game.ErrTurnInFlight):
		return CodeTurnInFlight
	case errors.Is(err, game.ErrInvalidRoll):
		return CodeInvalidRoll
	case errors.Is(err, game.ErrMustServePrison):
		return CodeInPrison
	case errors.Is(err, game.ErrNotInPrison):
		return CodeNotInPrison
	default:
		return CodeBadRequest
	}
}

// ErrorFor maps a wire code back to the engine rejection, or nil for codes
// that have no engine counterpart.
func ErrorFor(code string) error {
	switch code {
	case CodeNotYourTurn, CodeStaleTurn:
		return game.ErrNotYourTurn
	case CodeTurnInFlight:
		return game.ErrTurnInFlight
	case CodeInvalidRoll:
		return game.ErrInvalidRoll
	case CodeInPrison:
		return game.ErrMustServePrison
	case CodeNotInPrison:
		return game.ErrNotInPrison
	default:
		return nil
	}
}
