// internal/session/errors.go
package session

import "errors"

// Validation errors: rejected synchronously, no state change.
var (
	ErrInvalidSettings     = errors.New("invalid lobby settings")
	ErrInvalidSkipRule     = errors.New("invalid skip rule, must be majority, unanimous, or time_based")
	ErrInvalidTimeLimit    = errors.New("skip time limit must be between 1 and 72 hours")
	ErrCannotSkipSelf      = errors.New("cannot vote to skip yourself")
	ErrInsufficientPlayers = errors.New("not enough eligible voters for this skip rule")
)

// Authorization errors.
var (
	ErrForbidden = errors.New("only the host can perform this action")
	ErrNotMember = errors.New("player is not in the lobby")
)

// Conflict errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrLobbyFull        = errors.New("lobby is full")
	ErrAlreadyStarted   = errors.New("lobby has already started")
	ErrLobbyClosed      = errors.New("lobby is closed")
	ErrVoteInProgress   = errors.New("a voting session is already active")
	ErrSessionNotActive = errors.New("voting session is not active")
	ErrBudgetExceeded   = errors.New("vote exceeds the player's point budget")
	ErrSkipInProgress   = errors.New("skip vote already in progress for this player")
	ErrSkipNotActive    = errors.New("skip session is not active")
	ErrDuplicateVote    = errors.New("already voted in this session")
	ErrNoVoteToCancel   = errors.New("no vote to cancel")
)

// Transient infrastructure errors. Store failures abort the operation and are
// safely retryable by the caller; fabric failures after a committed mutation
// degrade to an ack warning instead.
var (
	ErrStoreUnavailable  = errors.New("session store unavailable")
	ErrFabricUnavailable = errors.New("channel fabric unavailable")
)
