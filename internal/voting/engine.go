// internal/voting/engine.go
package voting

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// Engine runs one point-allocation vote per lobby per round: no-session ->
// active -> completed. Vote writes are upserts keyed by
// (session, voter, candidate).
type Engine struct {
	store session.Store
	log   *logrus.Logger
}

// NewEngine builds a voting engine on the given store.
func NewEngine(store session.Store, logger *logrus.Logger) *Engine {
	return &Engine{store: store, log: logger}
}

// Start opens a voting session with the lobby's points-per-player budget.
// Host only; fails with ErrVoteInProgress while another session is active.
func (e *Engine) Start(ctx context.Context, lobbyID, requesterID uuid.UUID) (*models.VotingSession, error) {
	l, err := e.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LobbyStatusClosed {
		return nil, session.ErrLobbyClosed
	}
	if l.HostID != requesterID {
		return nil, session.ErrForbidden
	}

	if _, err := e.store.ActiveVotingSession(ctx, lobbyID); err == nil {
		return nil, session.ErrVoteInProgress
	} else if err != session.ErrNotFound {
		return nil, err
	}

	vs := &models.VotingSession{
		ID:              uuid.New(),
		LobbyID:         lobbyID,
		Status:          models.VotingStatusActive,
		PointsPerPlayer: l.VotingPointsPerPlayer,
		StartedAt:       time.Now().UTC(),
	}
	if err := e.store.InsertVotingSession(ctx, vs); err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "voting_id": vs.ID, "host_id": requesterID,
	}).Info("voting started")
	return vs, nil
}

// Cast upserts the voter's allocation for one candidate and returns the
// candidate's updated point total. A later vote replaces the previous points
// value for the same candidate; it never adds to it. The write is rejected
// with ErrBudgetExceeded when the voter's outstanding points plus the new
// allocation would exceed the session budget.
func (e *Engine) Cast(ctx context.Context, lobbyID, votingID, voterID uuid.UUID, gameID string, points int) (int, error) {
	l, err := e.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return 0, err
	}
	if l.Status == models.LobbyStatusClosed {
		return 0, session.ErrLobbyClosed
	}

	member, err := e.store.IsLobbyPlayer(ctx, lobbyID, voterID)
	if err != nil {
		return 0, err
	}
	if !member {
		return 0, session.ErrNotMember
	}

	vs, err := e.store.GetVotingSession(ctx, votingID)
	if err != nil {
		return 0, err
	}
	if vs.LobbyID != lobbyID {
		return 0, session.ErrNotFound
	}
	if vs.Status != models.VotingStatusActive {
		return 0, session.ErrSessionNotActive
	}

	if points < 0 {
		return 0, session.ErrInvalidSettings
	}
	outstanding, err := e.store.VoterPointsExcluding(ctx, votingID, voterID, gameID)
	if err != nil {
		return 0, err
	}
	if outstanding+points > vs.PointsPerPlayer {
		return 0, session.ErrBudgetExceeded
	}

	if err := e.store.UpsertVote(ctx, &models.Vote{
		VotingID:  votingID,
		UserID:    voterID,
		GameID:    gameID,
		Points:    points,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		return 0, err
	}

	total, err := e.store.GameVoteTotal(ctx, votingID, gameID)
	if err != nil {
		return 0, err
	}
	e.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "voting_id": votingID, "voter_id": voterID,
		"game_id": gameID, "points": points,
	}).Info("vote cast")
	return total, nil
}

// Remove deletes the voter's allocation for one candidate and returns the
// candidate's updated total. Removing a vote that was never cast is a no-op
// returning success.
func (e *Engine) Remove(ctx context.Context, votingID, voterID uuid.UUID, gameID string) (int, error) {
	vs, err := e.store.GetVotingSession(ctx, votingID)
	if err != nil {
		return 0, err
	}
	l, err := e.store.GetLobby(ctx, vs.LobbyID)
	if err != nil {
		return 0, err
	}
	if l.Status == models.LobbyStatusClosed {
		return 0, session.ErrLobbyClosed
	}

	if err := e.store.DeleteVote(ctx, votingID, voterID, gameID); err != nil {
		return 0, err
	}
	total, err := e.store.GameVoteTotal(ctx, votingID, gameID)
	if err != nil {
		return 0, err
	}
	e.log.WithFields(logrus.Fields{
		"voting_id": votingID, "voter_id": voterID, "game_id": gameID,
	}).Info("vote removed")
	return total, nil
}

// End completes the session and returns the ranked results: candidates by
// summed points descending, candidate id as a stable tiebreak. Host only.
func (e *Engine) End(ctx context.Context, lobbyID, votingID, requesterID uuid.UUID) ([]models.GameResult, error) {
	l, err := e.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LobbyStatusClosed {
		return nil, session.ErrLobbyClosed
	}
	if l.HostID != requesterID {
		return nil, session.ErrForbidden
	}

	vs, err := e.store.GetVotingSession(ctx, votingID)
	if err != nil {
		return nil, err
	}
	if vs.LobbyID != lobbyID {
		return nil, session.ErrNotFound
	}
	if vs.Status != models.VotingStatusActive {
		return nil, session.ErrSessionNotActive
	}

	if err := e.store.CompleteVotingSession(ctx, votingID, time.Now().UTC()); err != nil {
		return nil, err
	}
	results, err := e.store.VotingResults(ctx, votingID)
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "voting_id": votingID, "host_id": requesterID,
	}).Info("voting ended")
	return results, nil
}
