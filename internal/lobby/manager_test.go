// internal/lobby/manager_test.go
package lobby

import (
	"context"
	"io"
	"regexp"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwars/realtime/internal/database"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

func newTestManager() (*Manager, *database.Memory) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := database.NewMemory()
	return NewManager(store, logger), store
}

func seedUser(store *database.Memory, name string) uuid.UUID {
	id := uuid.New()
	store.PutUser(&models.User{ID: id, DisplayName: name, Level: 1})
	return id
}

func TestCreateAppliesDefaults(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()

	l, err := m.Create(context.Background(), host, CreateRequest{Name: "friday night"})
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxPlayers, l.MaxPlayers)
	assert.Equal(t, DefaultTotalRounds, l.TotalRounds)
	assert.Equal(t, DefaultPointsPerPlayer, l.VotingPointsPerPlayer)
	assert.Equal(t, models.SkipRuleMajority, l.SkipRule)
	assert.Equal(t, DefaultTimeLimitHours, l.SkipTimeLimitHours)
	assert.Equal(t, models.LobbyStatusWaiting, l.Status)
	assert.Equal(t, 1, l.CurrentRound)
	assert.True(t, l.IsPrivate)
	assert.Regexp(t, regexp.MustCompile(`^[A-Z]+\d{1,2}$`), l.Code)

	// The host is enrolled as the first member.
	member, err := m.IsMember(context.Background(), l.ID, host)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestCreateRejectsOutOfRangeSettings(t *testing.T) {
	m, _ := newTestManager()
	host := uuid.New()

	_, err := m.Create(context.Background(), host, CreateRequest{MaxPlayers: 1})
	assert.ErrorIs(t, err, session.ErrInvalidSettings)

	_, err = m.Create(context.Background(), host, CreateRequest{MaxPlayers: MaxPlayersLimit + 1})
	assert.ErrorIs(t, err, session.ErrInvalidSettings)

	_, err = m.Create(context.Background(), host, CreateRequest{TotalRounds: MaxRounds + 1})
	assert.ErrorIs(t, err, session.ErrInvalidSettings)

	_, err = m.Create(context.Background(), host, CreateRequest{VotingPointsPerPlayer: MaxPointsPerPlayer + 1})
	assert.ErrorIs(t, err, session.ErrInvalidSettings)
}

func TestJoinAndCapacity(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")

	l, err := m.Create(context.Background(), host, CreateRequest{MaxPlayers: 3})
	require.NoError(t, err)

	u2 := seedUser(store, "second")
	u3 := seedUser(store, "third")
	_, err = m.Join(context.Background(), l.ID, u2)
	require.NoError(t, err)
	_, err = m.Join(context.Background(), l.ID, u3)
	require.NoError(t, err)

	// Capacity reached: a new participant is refused.
	_, err = m.Join(context.Background(), l.ID, seedUser(store, "fourth"))
	assert.ErrorIs(t, err, session.ErrLobbyFull)

	// A member re-joining at capacity still succeeds without a second row.
	res, err := m.Join(context.Background(), l.ID, u2)
	require.NoError(t, err)
	assert.True(t, res.Rejoined)

	count, err := store.CountLobbyPlayers(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestJoinByCode(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	res, err := m.JoinByCode(context.Background(), l.Code, seedUser(store, "joiner"))
	require.NoError(t, err)
	assert.Equal(t, l.ID, res.Lobby.ID)

	_, err = m.JoinByCode(context.Background(), "NOSUCHCODE1", uuid.New())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestJoinAfterStartRejected(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	require.NoError(t, m.StartGame(context.Background(), l.ID, host))

	_, err = m.Join(context.Background(), l.ID, uuid.New())
	assert.ErrorIs(t, err, session.ErrAlreadyStarted)

	// Members can still rejoin after the game starts.
	res, err := m.Join(context.Background(), l.ID, host)
	require.NoError(t, err)
	assert.True(t, res.Rejoined)
}

func TestLeaveIsIdempotent(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	stranger := uuid.New()
	assert.NoError(t, m.Leave(context.Background(), l.ID, stranger))
	assert.NoError(t, m.Leave(context.Background(), l.ID, host))
	assert.NoError(t, m.Leave(context.Background(), l.ID, host))
}

func TestKickRequiresHost(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	u2 := seedUser(store, "second")
	_, err = m.Join(context.Background(), l.ID, u2)
	require.NoError(t, err)

	err = m.Kick(context.Background(), l.ID, u2, host)
	assert.ErrorIs(t, err, session.ErrForbidden)

	require.NoError(t, m.Kick(context.Background(), l.ID, host, u2))
	member, err := m.IsMember(context.Background(), l.ID, u2)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestTransferHost(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	// Target must hold an active membership.
	err = m.TransferHost(context.Background(), l.ID, host, uuid.New())
	assert.ErrorIs(t, err, session.ErrNotMember)

	u2 := seedUser(store, "second")
	_, err = m.Join(context.Background(), l.ID, u2)
	require.NoError(t, err)

	require.NoError(t, m.TransferHost(context.Background(), l.ID, host, u2))

	got, err := store.GetLobby(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, u2, got.HostID)

	// The old host lost its privileges.
	err = m.Kick(context.Background(), l.ID, host, u2)
	assert.ErrorIs(t, err, session.ErrForbidden)
}

func TestUpdateSettingsValidation(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	bad := "sometimes"
	_, err = m.UpdateSettings(context.Background(), l.ID, host, models.SettingsPatch{SkipRule: &bad})
	assert.ErrorIs(t, err, session.ErrInvalidSkipRule)

	tooLong := MaxTimeLimitHours + 1
	_, err = m.UpdateSettings(context.Background(), l.ID, host, models.SettingsPatch{SkipTimeLimitHours: &tooLong})
	assert.ErrorIs(t, err, session.ErrInvalidTimeLimit)

	rule := models.SkipRuleUnanimous
	hours := 12
	updated, err := m.UpdateSettings(context.Background(), l.ID, host, models.SettingsPatch{
		SkipRule:           &rule,
		SkipTimeLimitHours: &hours,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SkipRuleUnanimous, updated.SkipRule)
	assert.Equal(t, 12, updated.SkipTimeLimitHours)
	// Untouched fields keep their values.
	assert.Equal(t, l.MaxPlayers, updated.MaxPlayers)
}

func TestCloseIsTerminal(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")
	l, err := m.Create(context.Background(), host, CreateRequest{})
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background(), l.ID, host))

	_, err = m.Join(context.Background(), l.ID, uuid.New())
	assert.ErrorIs(t, err, session.ErrLobbyClosed)
	assert.ErrorIs(t, m.Leave(context.Background(), l.ID, host), session.ErrLobbyClosed)
	assert.ErrorIs(t, m.StartGame(context.Background(), l.ID, host), session.ErrLobbyClosed)
	assert.ErrorIs(t, m.Close(context.Background(), l.ID, host), session.ErrLobbyClosed)
}

func TestListFiltersPrivateLobbies(t *testing.T) {
	m, store := newTestManager()
	host := seedUser(store, "host")

	public := false
	_, err := m.Create(context.Background(), host, CreateRequest{Name: "open", IsPrivate: &public})
	require.NoError(t, err)
	_, err = m.Create(context.Background(), host, CreateRequest{Name: "hidden"})
	require.NoError(t, err)

	summaries, err := m.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "open", summaries[0].Name)
	assert.Equal(t, "host", summaries[0].HostName)
	assert.Equal(t, 1, summaries[0].PlayerCount)
}
