// internal/lobby/manager.go
package lobby

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// Settings bounds enforced on create and update.
const (
	MinPlayers         = 2
	MaxPlayersLimit    = 20
	MaxRounds          = 20
	MaxPointsPerPlayer = 100
	MinTimeLimitHours  = 1
	MaxTimeLimitHours  = 72
)

// Defaults applied when create-lobby omits a field.
const (
	DefaultMaxPlayers      = 10
	DefaultTotalRounds     = 3
	DefaultPointsPerPlayer = 10
	DefaultSkipRule        = models.SkipRuleMajority
	DefaultTimeLimitHours  = 24
)

// Manager owns lobby lifecycle and settings: create, join, leave, kick,
// host transfer, game start, settings patches, and closure. All durable state
// goes through the session store; broadcasting is the coordinator's job.
type Manager struct {
	store session.Store
	log   *logrus.Logger
}

// NewManager builds a lobby manager on the given store.
func NewManager(store session.Store, logger *logrus.Logger) *Manager {
	return &Manager{store: store, log: logger}
}

// CreateRequest carries the create-lobby payload. Zero-valued fields take the
// defaults above.
type CreateRequest struct {
	Name                  string `json:"name"`
	MaxPlayers            int    `json:"max_players"`
	IsPrivate             *bool  `json:"is_private"`
	TotalRounds           int    `json:"total_rounds"`
	VotingPointsPerPlayer int    `json:"voting_points_per_player"`
}

// Create persists a waiting lobby with a collision-checked human code and
// enrolls the host as the first member.
func (m *Manager) Create(ctx context.Context, hostID uuid.UUID, req CreateRequest) (*models.Lobby, error) {
	if req.MaxPlayers == 0 {
		req.MaxPlayers = DefaultMaxPlayers
	}
	if req.TotalRounds == 0 {
		req.TotalRounds = DefaultTotalRounds
	}
	if req.VotingPointsPerPlayer == 0 {
		req.VotingPointsPerPlayer = DefaultPointsPerPlayer
	}
	isPrivate := true
	if req.IsPrivate != nil {
		isPrivate = *req.IsPrivate
	}

	if req.MaxPlayers < MinPlayers || req.MaxPlayers > MaxPlayersLimit {
		return nil, fmt.Errorf("%w: max_players must be between %d and %d",
			session.ErrInvalidSettings, MinPlayers, MaxPlayersLimit)
	}
	if req.TotalRounds < 1 || req.TotalRounds > MaxRounds {
		return nil, fmt.Errorf("%w: total_rounds must be between 1 and %d",
			session.ErrInvalidSettings, MaxRounds)
	}
	if req.VotingPointsPerPlayer < 1 || req.VotingPointsPerPlayer > MaxPointsPerPlayer {
		return nil, fmt.Errorf("%w: voting_points_per_player must be between 1 and %d",
			session.ErrInvalidSettings, MaxPointsPerPlayer)
	}

	code, err := m.uniqueCode(ctx)
	if err != nil {
		return nil, err
	}

	l := &models.Lobby{
		ID:                    uuid.New(),
		Code:                  code,
		Name:                  req.Name,
		HostID:                hostID,
		MaxPlayers:            req.MaxPlayers,
		IsPrivate:             isPrivate,
		Status:                models.LobbyStatusWaiting,
		CurrentRound:          1,
		TotalRounds:           req.TotalRounds,
		VotingPointsPerPlayer: req.VotingPointsPerPlayer,
		SkipRule:              DefaultSkipRule,
		SkipTimeLimitHours:    DefaultTimeLimitHours,
		CreatedAt:             time.Now().UTC(),
	}
	if err := m.store.InsertLobby(ctx, l); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"lobby_id": l.ID, "code": l.Code, "host_id": hostID,
	}).Info("lobby created")
	return l, nil
}

// JoinResult describes a successful join.
type JoinResult struct {
	Lobby   *models.Lobby
	Profile *models.User
	// Rejoined is true when the caller already held an active membership;
	// the join is idempotent and no membership row was added.
	Rejoined bool
}

// Join enrolls a participant in a waiting lobby. Joining a lobby you are
// already in succeeds without a duplicate membership.
func (m *Manager) Join(ctx context.Context, lobbyID, userID uuid.UUID) (*JoinResult, error) {
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	return m.join(ctx, l, userID)
}

// JoinByCode resolves a human code and joins the matching lobby.
func (m *Manager) JoinByCode(ctx context.Context, code string, userID uuid.UUID) (*JoinResult, error) {
	l, err := m.store.GetLobbyByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return m.join(ctx, l, userID)
}

func (m *Manager) join(ctx context.Context, l *models.Lobby, userID uuid.UUID) (*JoinResult, error) {
	if l.Status == models.LobbyStatusClosed {
		return nil, session.ErrLobbyClosed
	}

	// Idempotency first: a member re-joining must succeed even at capacity.
	member, err := m.store.IsLobbyPlayer(ctx, l.ID, userID)
	if err != nil {
		return nil, err
	}
	if member {
		return &JoinResult{Lobby: l, Rejoined: true}, nil
	}

	if l.Status != models.LobbyStatusWaiting {
		return nil, session.ErrAlreadyStarted
	}
	count, err := m.store.CountLobbyPlayers(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	if count >= l.MaxPlayers {
		return nil, session.ErrLobbyFull
	}

	if err := m.store.AddLobbyPlayer(ctx, l.ID, userID); err != nil {
		return nil, err
	}

	profile, err := m.store.GetUser(ctx, userID)
	if err != nil && err != session.ErrNotFound {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{"lobby_id": l.ID, "user_id": userID}).Info("player joined lobby")
	return &JoinResult{Lobby: l, Profile: profile}, nil
}

// Leave removes the caller's membership. Leaving a lobby you are not in is a
// no-op returning success.
func (m *Manager) Leave(ctx context.Context, lobbyID, userID uuid.UUID) error {
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.Status == models.LobbyStatusClosed {
		return session.ErrLobbyClosed
	}
	if err := m.store.RemoveLobbyPlayer(ctx, lobbyID, userID); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "user_id": userID}).Info("player left lobby")
	return nil
}

// Kick removes another participant. Host only.
func (m *Manager) Kick(ctx context.Context, lobbyID, requesterID, targetID uuid.UUID) error {
	if _, err := m.hostLobby(ctx, lobbyID, requesterID); err != nil {
		return err
	}
	if err := m.store.RemoveLobbyPlayer(ctx, lobbyID, targetID); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "target_id": targetID, "host_id": requesterID,
	}).Info("player kicked from lobby")
	return nil
}

// TransferHost reassigns host privileges to an active member. Host only.
func (m *Manager) TransferHost(ctx context.Context, lobbyID, requesterID, newHostID uuid.UUID) error {
	if _, err := m.hostLobby(ctx, lobbyID, requesterID); err != nil {
		return err
	}
	member, err := m.store.IsLobbyPlayer(ctx, lobbyID, newHostID)
	if err != nil {
		return err
	}
	if !member {
		return session.ErrNotMember
	}
	if err := m.store.SetLobbyHost(ctx, lobbyID, newHostID); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "old_host": requesterID, "new_host": newHostID,
	}).Info("host transferred")
	return nil
}

// StartGame transitions the lobby from waiting to playing, stamping the
// start time. Host only.
func (m *Manager) StartGame(ctx context.Context, lobbyID, requesterID uuid.UUID) error {
	l, err := m.hostLobby(ctx, lobbyID, requesterID)
	if err != nil {
		return err
	}
	if l.Status != models.LobbyStatusWaiting {
		return session.ErrAlreadyStarted
	}
	now := time.Now().UTC()
	if err := m.store.SetLobbyStatus(ctx, lobbyID, models.LobbyStatusPlaying, &now); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "host_id": requesterID}).Info("game started")
	return nil
}

// UpdateSettings applies a partial settings patch after validating every
// provided field. Host only. Returns the lobby as updated.
func (m *Manager) UpdateSettings(ctx context.Context, lobbyID, requesterID uuid.UUID, patch models.SettingsPatch) (*models.Lobby, error) {
	if _, err := m.hostLobby(ctx, lobbyID, requesterID); err != nil {
		return nil, err
	}
	if err := validatePatch(patch); err != nil {
		return nil, err
	}
	if err := m.store.UpdateLobbySettings(ctx, lobbyID, patch); err != nil {
		return nil, err
	}
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	m.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "host_id": requesterID}).Info("lobby settings updated")
	return l, nil
}

func validatePatch(patch models.SettingsPatch) error {
	if patch.SkipRule != nil && !models.ValidSkipRule(*patch.SkipRule) {
		return session.ErrInvalidSkipRule
	}
	if patch.SkipTimeLimitHours != nil &&
		(*patch.SkipTimeLimitHours < MinTimeLimitHours || *patch.SkipTimeLimitHours > MaxTimeLimitHours) {
		return session.ErrInvalidTimeLimit
	}
	if patch.MaxPlayers != nil && (*patch.MaxPlayers < MinPlayers || *patch.MaxPlayers > MaxPlayersLimit) {
		return fmt.Errorf("%w: max_players must be between %d and %d",
			session.ErrInvalidSettings, MinPlayers, MaxPlayersLimit)
	}
	if patch.TotalRounds != nil && (*patch.TotalRounds < 1 || *patch.TotalRounds > MaxRounds) {
		return fmt.Errorf("%w: total_rounds must be between 1 and %d",
			session.ErrInvalidSettings, MaxRounds)
	}
	if patch.VotingPointsPerPlayer != nil &&
		(*patch.VotingPointsPerPlayer < 1 || *patch.VotingPointsPerPlayer > MaxPointsPerPlayer) {
		return fmt.Errorf("%w: voting_points_per_player must be between 1 and %d",
			session.ErrInvalidSettings, MaxPointsPerPlayer)
	}
	return nil
}

// Close performs the terminal transition. Host only; every subsequent
// mutation on the lobby fails with ErrLobbyClosed.
func (m *Manager) Close(ctx context.Context, lobbyID, requesterID uuid.UUID) error {
	if _, err := m.hostLobby(ctx, lobbyID, requesterID); err != nil {
		return err
	}
	if err := m.store.SetLobbyStatus(ctx, lobbyID, models.LobbyStatusClosed, nil); err != nil {
		return err
	}
	m.log.WithFields(logrus.Fields{"lobby_id": lobbyID, "host_id": requesterID}).Info("lobby closed")
	return nil
}

// List returns public lobbies filtered by status, newest first.
func (m *Manager) List(ctx context.Context, status string, limit int) ([]models.LobbySummary, error) {
	if status == "" {
		status = models.LobbyStatusWaiting
	}
	if limit <= 0 {
		limit = 20
	}
	return m.store.ListLobbies(ctx, status, limit)
}

// IsMember reports whether a participant holds an active membership.
func (m *Manager) IsMember(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	return m.store.IsLobbyPlayer(ctx, lobbyID, userID)
}

// hostLobby loads the lobby and verifies the requester is its host and the
// lobby is not closed.
func (m *Manager) hostLobby(ctx context.Context, lobbyID, requesterID uuid.UUID) (*models.Lobby, error) {
	l, err := m.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LobbyStatusClosed {
		return nil, session.ErrLobbyClosed
	}
	if l.HostID != requesterID {
		return nil, session.ErrForbidden
	}
	return l, nil
}
