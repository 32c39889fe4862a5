package services

import "github.com/rotisserie/eris"

var (
	// Contention: the operation is already in effect.
	ErrAlreadyQueued        = eris.New("player is already searching for a match")
	ErrDuplicateActiveMatch = eris.New("player already has an active match")
	ErrAlreadyInvited       = eris.New("player already has a pending invite")

	// Absence: expected and recoverable.
	ErrNoOpponent     = eris.New("no opponent waiting")
	ErrNotFound       = eris.New("match does not exist")
	ErrMatchNotFound  = eris.New("no active match between these players")
	ErrPeerOffline    = eris.New("one or both players are offline")
	ErrPlayerNotFound = eris.New("player not found")
	ErrInviteNotFound = eris.New("invite not found")

	// Malformed input.
	ErrInvalidMask = eris.New("board mask outside the 9-bit domain")
	ErrSelfMatch   = eris.New("cannot play against yourself")
	ErrNotFriends  = eris.New("players are not friends")
)
