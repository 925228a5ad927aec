// internal/session/store.go
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mindwars/realtime/internal/models"
)

// Store is the Session Store collaborator: the durable system of record for
// lobbies, rosters, and votes. Implementations must bound every call with a
// timeout and surface expiry as ErrStoreUnavailable; row lookups that match
// nothing return ErrNotFound.
//
// internal/database provides a Postgres implementation and an in-memory one
// for tests and local development.
type Store interface {
	// Lobbies.
	InsertLobby(ctx context.Context, l *models.Lobby) error
	GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error)
	GetLobbyByCode(ctx context.Context, code string) (*models.Lobby, error)
	LobbyCodeExists(ctx context.Context, code string) (bool, error)
	UpdateLobbySettings(ctx context.Context, id uuid.UUID, patch models.SettingsPatch) error
	SetLobbyHost(ctx context.Context, id, hostID uuid.UUID) error
	SetLobbyStatus(ctx context.Context, id uuid.UUID, status string, startedAt *time.Time) error
	ListLobbies(ctx context.Context, status string, limit int) ([]models.LobbySummary, error)

	// Memberships.
	AddLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) error
	RemoveLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) error
	IsLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error)
	CountLobbyPlayers(ctx context.Context, lobbyID uuid.UUID) (int, error)
	ListLobbyPlayers(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error)

	// Users (display profiles).
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpsertUser(ctx context.Context, u *models.User) error

	// Game-selection voting.
	InsertVotingSession(ctx context.Context, vs *models.VotingSession) error
	GetVotingSession(ctx context.Context, id uuid.UUID) (*models.VotingSession, error)
	ActiveVotingSession(ctx context.Context, lobbyID uuid.UUID) (*models.VotingSession, error)
	CompleteVotingSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error
	UpsertVote(ctx context.Context, v *models.Vote) error
	DeleteVote(ctx context.Context, votingID, voterID uuid.UUID, gameID string) error
	GameVoteTotal(ctx context.Context, votingID uuid.UUID, gameID string) (int, error)
	VoterPointsExcluding(ctx context.Context, votingID, voterID uuid.UUID, excludeGameID string) (int, error)
	VotingResults(ctx context.Context, votingID uuid.UUID) ([]models.GameResult, error)

	// Skip-vote sessions.
	InsertSkipSession(ctx context.Context, s *models.SkipSession) error
	GetSkipSession(ctx context.Context, id uuid.UUID) (*models.SkipSession, error)
	OpenSkipSession(ctx context.Context, lobbyID uuid.UUID, battleNumber int, targetID uuid.UUID) (*models.SkipSession, error)
	AddSkipVote(ctx context.Context, sessionID, voterID uuid.UUID) (int, error)
	RemoveSkipVote(ctx context.Context, sessionID, voterID uuid.UUID) (int, error)
	MarkSkipExecuted(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error)
	ExpiredTimeBasedSessions(ctx context.Context, now time.Time) ([]models.SkipSession, error)
}
