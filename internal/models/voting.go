// internal/models/voting.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Voting session status values.
const (
	VotingStatusActive    = "active"
	VotingStatusCompleted = "completed"
)

// VotingSession represents one game-selection vote for a lobby round.
// At most one active session exists per lobby at a time.
type VotingSession struct {
	ID              uuid.UUID  `json:"id"`
	LobbyID         uuid.UUID  `json:"lobby_id"`
	Status          string     `json:"status"`
	PointsPerPlayer int        `json:"points_per_player"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// Vote is a point allocation by one voter for one candidate game, unique per
// (session, voter, game). A later vote for the same candidate replaces the
// points value (upsert), it does not add to it.
type Vote struct {
	VotingID  uuid.UUID `json:"voting_id"`
	UserID    uuid.UUID `json:"user_id"`
	GameID    string    `json:"game_id"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

// GameResult is one row of the ranked voting outcome.
type GameResult struct {
	GameID     string `json:"game_id"`
	TotalVotes int    `json:"total_votes"`
}
