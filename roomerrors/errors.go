package roomerrors

import "errors"

// Room sentinel errors. Shared by rooms, relay and api to avoid circular imports.
var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomClosed   = errors.New("room closed")
	ErrNotSeated    = errors.New("player is not seated in this room")
	ErrUnauthorized = errors.New("token does not match player")
	ErrNameTooLong  = errors.New("player name too long")
)
