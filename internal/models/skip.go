// internal/models/skip.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Skip session phases. Terminal phases are executed and cancelled.
const (
	SkipPhaseSelection = "selection"
	SkipPhaseActive    = "active"
	SkipPhaseExecuted  = "executed"
	SkipPhaseCancelled = "cancelled"
)

// SkipSession is a quorum vote to forcibly skip one participant for a given
// battle. At most one session in a non-terminal phase may exist per
// (lobby, battle, target).
type SkipSession struct {
	ID             uuid.UUID  `json:"id"`
	LobbyID        uuid.UUID  `json:"lobby_id"`
	BattleNumber   int        `json:"battle_number"`
	TargetID       uuid.UUID  `json:"player_id_to_skip"`
	InitiatedBy    uuid.UUID  `json:"initiated_by"`
	SkipRule       string     `json:"skip_rule"`
	VotesRequired  int        `json:"votes_required"`
	VotesCount     int        `json:"votes_count"`
	Phase          string     `json:"phase"`
	TimeLimitHours int        `json:"time_limit_hours"`
	CreatedAt      time.Time  `json:"created_at"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
}

// Open reports whether the session can still accept or shed votes.
func (s *SkipSession) Open() bool {
	return s.Phase == SkipPhaseSelection || s.Phase == SkipPhaseActive
}

// SkipVote records that a voter supports skipping the session's target.
// Unique per (session, voter); the voter is never the target.
type SkipVote struct {
	SessionID uuid.UUID `json:"session_id"`
	VoterID   uuid.UUID `json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`
}
