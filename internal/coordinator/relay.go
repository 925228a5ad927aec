// internal/coordinator/relay.go
package coordinator

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/session"
)

// MakeTurn relays an in-game turn to the rest of the lobby. Turn payloads are
// opaque to the server; membership is the only gate.
func (co *Coordinator) MakeTurn(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID, turn map[string]interface{}) session.Ack {
	member, err := co.lobbies.IsMember(ctx, lobbyID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}
	if !member {
		return session.Fail(session.ErrNotMember)
	}

	pubErr := co.fabric.PublishExcept(ctx, fabric.LobbyRoom(lobbyID), c, event(session.EventTurnMade, map[string]interface{}{
		"lobby_id": lobbyID.String(),
		"user_id":  c.UserID.String(),
		"turn":     turn,
	}))
	return ack(nil, pubErr)
}

// SubmitGameResult relays a finished battle's outcome to the lobby.
func (co *Coordinator) SubmitGameResult(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID, result map[string]interface{}) session.Ack {
	member, err := co.lobbies.IsMember(ctx, lobbyID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}
	if !member {
		return session.Fail(session.ErrNotMember)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventGameResultSubmitted, map[string]interface{}{
		"lobby_id": lobbyID.String(),
		"user_id":  c.UserID.String(),
		"result":   result,
	}))
	return ack(nil, pubErr)
}
