// internal/coordinator/coordinator_test.go
package coordinator

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwars/realtime/internal/database"
	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
	"github.com/mindwars/realtime/internal/skip"
	"github.com/mindwars/realtime/internal/voting"
)

type harness struct {
	co    *Coordinator
	store *database.Memory
	fab   *fabric.Fabric
	conns []*fabric.Conn // conns[0] is the host
}

// newHarness builds the full stack over the in-memory store with n connected
// participants, the first of which hosts a fresh lobby.
func newHarness(t *testing.T, n int) (*harness, uuid.UUID) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := database.NewMemory()
	fab := fabric.New(logger, nil)

	co := New(
		lobby.NewManager(store, logger),
		voting.NewEngine(store, logger),
		skip.NewProtocol(store, logger),
		store, fab, logger,
	)

	h := &harness{co: co, store: store, fab: fab}
	for i := 0; i < n; i++ {
		id := uuid.New()
		store.PutUser(&models.User{ID: id, DisplayName: "player", Level: 1})
		c := fabric.NewConn(id, func() {})
		co.Connected(c)
		drain(c) // discard the connected frame
		h.conns = append(h.conns, c)
	}

	a := co.CreateLobby(context.Background(), h.conns[0], lobby.CreateRequest{MaxPlayers: 10})
	require.True(t, a.Success, a.Error)
	lobbyID := ackLobbyID(t, a)

	for _, c := range h.conns[1:] {
		a := co.JoinLobby(context.Background(), c, lobbyID)
		require.True(t, a.Success, a.Error)
	}
	for _, c := range h.conns {
		drain(c)
	}
	return h, lobbyID
}

func ackLobbyID(t *testing.T, a session.Ack) uuid.UUID {
	t.Helper()
	lob, ok := a.Data["lobby"].(map[string]interface{})
	require.True(t, ok)
	id, err := uuid.Parse(lob["id"].(string))
	require.NoError(t, err)
	return id
}

// drain empties a connection's outbound queue and returns the frames.
func drain(c *fabric.Conn) []map[string]interface{} {
	var out []map[string]interface{}
	for {
		select {
		case m := <-c.OutChan:
			out = append(out, m)
		default:
			return out
		}
	}
}

func frameOfType(frames []map[string]interface{}, typ string) map[string]interface{} {
	for _, f := range frames {
		if f["type"] == typ {
			return f
		}
	}
	return nil
}

func TestAckDegradesToWarningOnPublishError(t *testing.T) {
	// A failed broadcast after a committed mutation must not fail the ack.
	a := ack(map[string]interface{}{"x": 1}, errors.New("journal down"))
	assert.True(t, a.Success)
	assert.Contains(t, a.Warning, "journal down")

	a = ack(nil, nil)
	assert.True(t, a.Success)
	assert.Empty(t, a.Warning)
}

func TestJoinBroadcastsToRoomNotOriginator(t *testing.T) {
	h, lobbyID := newHarness(t, 2)

	id := uuid.New()
	h.store.PutUser(&models.User{ID: id, DisplayName: "late", Level: 1})
	late := fabric.NewConn(id, func() {})
	h.co.Connected(late)
	drain(late)

	a := h.co.JoinLobby(context.Background(), late, lobbyID)
	require.True(t, a.Success, a.Error)
	assert.Empty(t, a.Warning)

	// Existing members hear player-joined; the joiner gets only the ack data.
	for _, c := range h.conns {
		f := frameOfType(drain(c), session.EventPlayerJoined)
		require.NotNil(t, f)
		data := f["data"].(map[string]interface{})
		assert.Equal(t, id.String(), data["user_id"])
		assert.NotEmpty(t, f["timestamp"])
	}
	assert.Nil(t, frameOfType(drain(late), session.EventPlayerJoined))
}

func TestKickNotifiesRoomAndTarget(t *testing.T) {
	h, lobbyID := newHarness(t, 3)
	target := h.conns[2]

	a := h.co.KickPlayer(context.Background(), h.conns[0], lobbyID, target.UserID)
	require.True(t, a.Success, a.Error)

	f := frameOfType(drain(h.conns[1]), session.EventPlayerKicked)
	require.NotNil(t, f)

	// The target hears both the room event and the private notice.
	frames := drain(target)
	assert.NotNil(t, frameOfType(frames, session.EventPlayerKicked))
	assert.NotNil(t, frameOfType(frames, session.EventKickedFromLobby))

	// Non-host kick attempts are refused.
	a = h.co.KickPlayer(context.Background(), h.conns[1], lobbyID, h.conns[0].UserID)
	assert.False(t, a.Success)
}

func TestVotingFlowOverCoordinator(t *testing.T) {
	h, lobbyID := newHarness(t, 3)

	a := h.co.StartVoting(context.Background(), h.conns[0], lobbyID)
	require.True(t, a.Success, a.Error)
	votingID, err := uuid.Parse(a.Data["voting_id"].(string))
	require.NoError(t, err)
	require.NotNil(t, frameOfType(drain(h.conns[1]), session.EventVotingStarted))

	a = h.co.CastVote(context.Background(), h.conns[1], lobbyID, votingID, "chess", 6)
	require.True(t, a.Success, a.Error)
	assert.Equal(t, 6, a.Data["total_votes"])

	// The cast is broadcast to everyone but the caster.
	assert.NotNil(t, frameOfType(drain(h.conns[0]), session.EventVoteCast))
	assert.Nil(t, frameOfType(drain(h.conns[1]), session.EventVoteCast))

	a = h.co.EndVoting(context.Background(), h.conns[0], lobbyID, votingID)
	require.True(t, a.Success, a.Error)
	f := frameOfType(drain(h.conns[2]), session.EventVotingEnded)
	require.NotNil(t, f)
	results := f["data"].(map[string]interface{})["results"].([]map[string]interface{})
	require.Len(t, results, 1)
	assert.Equal(t, "chess", results[0]["game_id"])
}

func TestSkipVoteExecutionBroadcast(t *testing.T) {
	h, lobbyID := newHarness(t, 4)
	target := h.conns[3]

	// eligible = 3, majority requires 3.
	a := h.co.InitiateSkipVote(context.Background(), h.conns[0], lobbyID, 1, target.UserID)
	require.True(t, a.Success, a.Error)
	sess := a.Data["session"].(map[string]interface{})
	sessionID, err := uuid.Parse(sess["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, 3, sess["votes_required"])
	require.NotNil(t, frameOfType(drain(h.conns[1]), session.EventSkipVoteInitiated))

	a = h.co.CastSkipVote(context.Background(), h.conns[1], sessionID)
	require.True(t, a.Success, a.Error)
	assert.Equal(t, false, a.Data["executed"])
	require.NotNil(t, frameOfType(drain(h.conns[2]), session.EventSkipVoteUpdated))

	a = h.co.CastSkipVote(context.Background(), h.conns[2], sessionID)
	require.True(t, a.Success, a.Error)
	assert.Equal(t, true, a.Data["executed"])

	for _, c := range h.conns {
		require.NotNil(t, frameOfType(drain(c), session.EventSkipVoteExecuted))
	}
}

func TestDisconnectedLeavesRoomsWithoutMembershipChange(t *testing.T) {
	h, lobbyID := newHarness(t, 3)
	gone := h.conns[2]

	h.co.Disconnected(context.Background(), gone)

	f := frameOfType(drain(h.conns[0]), session.EventPlayerDisconnected)
	require.NotNil(t, f)
	assert.Equal(t, gone.UserID.String(), f["data"].(map[string]interface{})["user_id"])

	// Membership survives the disconnect.
	member, err := h.store.IsLobbyPlayer(context.Background(), lobbyID, gone.UserID)
	require.NoError(t, err)
	assert.True(t, member)

	// The dropped connection no longer receives room traffic.
	a := h.co.StartGame(context.Background(), h.conns[0], lobbyID)
	require.True(t, a.Success, a.Error)
	assert.Nil(t, frameOfType(drain(gone), session.EventGameStarted))
}

func TestCloseLobbyEvictsLock(t *testing.T) {
	h, lobbyID := newHarness(t, 2)

	a := h.co.CloseLobby(context.Background(), h.conns[0], lobbyID)
	require.True(t, a.Success, a.Error)
	require.NotNil(t, frameOfType(drain(h.conns[1]), session.EventLobbyClosed))

	h.co.mu.Lock()
	_, held := h.co.locks[lobbyID]
	h.co.mu.Unlock()
	assert.False(t, held)

	// Stragglers fail cleanly on the closed lobby.
	a = h.co.StartGame(context.Background(), h.conns[0], lobbyID)
	assert.False(t, a.Success)
	assert.Equal(t, session.ErrLobbyClosed.Error(), a.Error)
}
