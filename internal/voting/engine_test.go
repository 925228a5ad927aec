// internal/voting/engine_test.go
package voting

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwars/realtime/internal/database"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

type fixture struct {
	engine *Engine
	store  *database.Memory
	lobby  *models.Lobby
	host   uuid.UUID
	member uuid.UUID
}

// newFixture seeds a two-member lobby with a 10-point voting budget.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := database.NewMemory()

	lm := lobby.NewManager(store, logger)
	host := uuid.New()
	store.PutUser(&models.User{ID: host, DisplayName: "host", Level: 1})
	l, err := lm.Create(context.Background(), host, lobby.CreateRequest{VotingPointsPerPlayer: 10})
	require.NoError(t, err)

	member := uuid.New()
	store.PutUser(&models.User{ID: member, DisplayName: "member", Level: 1})
	_, err = lm.Join(context.Background(), l.ID, member)
	require.NoError(t, err)

	return &fixture{
		engine: NewEngine(store, logger),
		store:  store,
		lobby:  l,
		host:   host,
		member: member,
	}
}

func TestStartIsHostOnlyAndExclusive(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Start(context.Background(), f.lobby.ID, f.member)
	assert.ErrorIs(t, err, session.ErrForbidden)

	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)
	assert.Equal(t, models.VotingStatusActive, vs.Status)
	assert.Equal(t, 10, vs.PointsPerPlayer)

	_, err = f.engine.Start(context.Background(), f.lobby.ID, f.host)
	assert.ErrorIs(t, err, session.ErrVoteInProgress)
}

func TestCastReplacesNotAdds(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	total, err := f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 6)
	require.NoError(t, err)
	assert.Equal(t, 6, total)

	// A second allocation for the same candidate replaces the first.
	total, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	// Another voter's points accumulate into the candidate total.
	total, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.host, "chess", 3)
	require.NoError(t, err)
	assert.Equal(t, 7, total)
}

func TestCastEnforcesBudget(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 6)
	require.NoError(t, err)
	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "go", 4)
	require.NoError(t, err)

	// Budget exhausted: any further allocation fails.
	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "poker", 1)
	assert.ErrorIs(t, err, session.ErrBudgetExceeded)

	// Replacing an existing allocation frees its old points first.
	total, err := f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "poker", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, total)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "dice", -1)
	assert.ErrorIs(t, err, session.ErrInvalidSettings)
}

func TestCastRequiresMembershipAndActiveSession(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, uuid.New(), "chess", 1)
	assert.ErrorIs(t, err, session.ErrNotMember)

	_, err = f.engine.End(context.Background(), f.lobby.ID, vs.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 1)
	assert.ErrorIs(t, err, session.ErrSessionNotActive)
}

func TestClosedLobbyRejectsVoteMutations(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 6)
	require.NoError(t, err)

	// The host closes the lobby while the voting session is still active.
	require.NoError(t, f.store.SetLobbyStatus(context.Background(), f.lobby.ID, models.LobbyStatusClosed, nil))

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 4)
	assert.ErrorIs(t, err, session.ErrLobbyClosed)

	_, err = f.engine.Remove(context.Background(), vs.ID, f.member, "chess")
	assert.ErrorIs(t, err, session.ErrLobbyClosed)

	_, err = f.engine.End(context.Background(), f.lobby.ID, vs.ID, f.host)
	assert.ErrorIs(t, err, session.ErrLobbyClosed)

	// The earlier allocation is untouched.
	total, err := f.store.GameVoteTotal(context.Background(), vs.ID, "chess")
	require.NoError(t, err)
	assert.Equal(t, 6, total)
}

func TestRemoveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 6)
	require.NoError(t, err)

	total, err := f.engine.Remove(context.Background(), vs.ID, f.member, "chess")
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	// Removing a vote that was never cast is a no-op, not an error.
	total, err = f.engine.Remove(context.Background(), vs.ID, f.member, "chess")
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestEndRanksResults(t *testing.T) {
	f := newFixture(t)
	vs, err := f.engine.Start(context.Background(), f.lobby.ID, f.host)
	require.NoError(t, err)

	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "chess", 3)
	require.NoError(t, err)
	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.member, "go", 7)
	require.NoError(t, err)
	_, err = f.engine.Cast(context.Background(), f.lobby.ID, vs.ID, f.host, "poker", 7)
	require.NoError(t, err)

	_, err = f.engine.End(context.Background(), f.lobby.ID, vs.ID, f.member)
	assert.ErrorIs(t, err, session.ErrForbidden)

	results, err := f.engine.End(context.Background(), f.lobby.ID, vs.ID, f.host)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Descending by points, candidate id breaks the 7-7 tie.
	assert.Equal(t, models.GameResult{GameID: "go", TotalVotes: 7}, results[0])
	assert.Equal(t, models.GameResult{GameID: "poker", TotalVotes: 7}, results[1])
	assert.Equal(t, models.GameResult{GameID: "chess", TotalVotes: 3}, results[2])

	_, err = f.engine.End(context.Background(), f.lobby.ID, vs.ID, f.host)
	assert.ErrorIs(t, err, session.ErrSessionNotActive)
}
