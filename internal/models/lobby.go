// internal/models/lobby.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Lobby status values. Transitions are monotonic: waiting -> playing -> closed.
const (
	LobbyStatusWaiting = "waiting"
	LobbyStatusPlaying = "playing"
	LobbyStatusClosed  = "closed"
)

// Skip rule values accepted in lobby settings.
const (
	SkipRuleMajority  = "majority"
	SkipRuleUnanimous = "unanimous"
	SkipRuleTimeBased = "time_based"
)

// Lobby represents a row in the lobbies table: a bounded group of participants
// assembled to play a multi-round session.
type Lobby struct {
	ID                    uuid.UUID  `json:"id"`
	Code                  string     `json:"code"`
	Name                  string     `json:"name"`
	HostID                uuid.UUID  `json:"host_id"`
	MaxPlayers            int        `json:"max_players"`
	IsPrivate             bool       `json:"is_private"`
	Status                string     `json:"status"`
	CurrentRound          int        `json:"current_round"`
	TotalRounds           int        `json:"total_rounds"`
	VotingPointsPerPlayer int        `json:"voting_points_per_player"`
	SkipRule              string     `json:"skip_rule"`
	SkipTimeLimitHours    int        `json:"skip_time_limit_hours"`
	CreatedAt             time.Time  `json:"created_at"`
	StartedAt             *time.Time `json:"started_at,omitempty"`
}

// LobbyPlayer represents an active membership row: exactly one per
// (lobby, user) pair while the user is in the lobby.
type LobbyPlayer struct {
	LobbyID  uuid.UUID `json:"lobby_id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// LobbySummary is the listing shape returned by list-lobbies.
type LobbySummary struct {
	ID                 uuid.UUID `json:"id"`
	Code               string    `json:"code"`
	Name               string    `json:"name"`
	HostName           string    `json:"host_name"`
	MaxPlayers         int       `json:"max_players"`
	PlayerCount        int       `json:"player_count"`
	Status             string    `json:"status"`
	SkipRule           string    `json:"skip_rule"`
	SkipTimeLimitHours int       `json:"skip_time_limit_hours"`
	CreatedAt          time.Time `json:"created_at"`
}

// SettingsPatch carries a partial update-lobby-settings payload. Nil fields
// are left untouched.
type SettingsPatch struct {
	Name                  *string `json:"name,omitempty"`
	MaxPlayers            *int    `json:"max_players,omitempty"`
	TotalRounds           *int    `json:"total_rounds,omitempty"`
	VotingPointsPerPlayer *int    `json:"voting_points_per_player,omitempty"`
	SkipRule              *string `json:"skip_rule,omitempty"`
	SkipTimeLimitHours    *int    `json:"skip_time_limit_hours,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p SettingsPatch) Empty() bool {
	return p.Name == nil && p.MaxPlayers == nil && p.TotalRounds == nil &&
		p.VotingPointsPerPlayer == nil && p.SkipRule == nil && p.SkipTimeLimitHours == nil
}

// ValidSkipRule reports whether s is one of the enumerated skip rules.
func ValidSkipRule(s string) bool {
	switch s {
	case SkipRuleMajority, SkipRuleUnanimous, SkipRuleTimeBased:
		return true
	}
	return false
}
