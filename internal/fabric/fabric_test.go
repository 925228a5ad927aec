// internal/fabric/fabric_test.go
package fabric

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFabric() *Fabric {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(logger, nil)
}

func recv(t *testing.T, c *Conn) map[string]interface{} {
	t.Helper()
	select {
	case m := <-c.OutChan:
		return m
	default:
		t.Fatal("expected a message on OutChan")
		return nil
	}
}

func TestPublishFansOutToRoomMembers(t *testing.T) {
	f := newFabric()
	a := NewConn(uuid.New(), func() {})
	b := NewConn(uuid.New(), func() {})
	c := NewConn(uuid.New(), func() {})

	room := LobbyRoom(uuid.New())
	f.Join(room, a)
	f.Join(room, b)

	require.NoError(t, f.Publish(context.Background(), room, map[string]interface{}{"type": "ping"}))

	assert.Equal(t, "ping", recv(t, a)["type"])
	assert.Equal(t, "ping", recv(t, b)["type"])
	assert.Empty(t, c.OutChan)
}

func TestPublishExceptSkipsOriginator(t *testing.T) {
	f := newFabric()
	a := NewConn(uuid.New(), func() {})
	b := NewConn(uuid.New(), func() {})

	room := LobbyRoom(uuid.New())
	f.Join(room, a)
	f.Join(room, b)

	require.NoError(t, f.PublishExcept(context.Background(), room, a, map[string]interface{}{"type": "ping"}))
	assert.Empty(t, a.OutChan)
	assert.Equal(t, "ping", recv(t, b)["type"])
}

func TestLeaveAllReturnsRooms(t *testing.T) {
	f := newFabric()
	c := NewConn(uuid.New(), func() {})

	lobbyRoom := LobbyRoom(uuid.New())
	userRoom := UserRoom(c.UserID)
	f.Join(lobbyRoom, c)
	f.Join(userRoom, c)
	require.Equal(t, 1, f.Members(lobbyRoom))

	left := f.LeaveAll(c)
	assert.ElementsMatch(t, []string{lobbyRoom, userRoom}, left)
	assert.Equal(t, 0, f.Members(lobbyRoom))

	// A second pass finds nothing.
	assert.Empty(t, f.LeaveAll(c))
}

func TestSlowConsumerDropsInsteadOfBlocking(t *testing.T) {
	f := newFabric()
	c := NewConn(uuid.New(), func() {})
	room := LobbyRoom(uuid.New())
	f.Join(room, c)

	// Fill the buffer past capacity; Publish must not block.
	for i := 0; i < cap(c.OutChan)+5; i++ {
		require.NoError(t, f.Publish(context.Background(), room, map[string]interface{}{"type": "tick"}))
	}
	assert.Equal(t, cap(c.OutChan), len(c.OutChan))
}
