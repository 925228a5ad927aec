// internal/coordinator/voting.go
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/session"
)

// StartVoting opens a game-selection vote for the lobby's current round.
func (co *Coordinator) StartVoting(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	vs, err := co.votes.Start(ctx, lobbyID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}

	data := map[string]interface{}{
		"voting_id":         vs.ID.String(),
		"lobby_id":          lobbyID.String(),
		"points_per_player": vs.PointsPerPlayer,
		"started_at":        vs.StartedAt.Format(time.RFC3339),
	}
	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventVotingStarted, data))
	return ack(data, pubErr)
}

// CastVote allocates points to a candidate game. A second cast for the same
// candidate replaces the earlier allocation. The caster already knows their
// own vote, so the broadcast skips the originating connection.
func (co *Coordinator) CastVote(ctx context.Context, c *fabric.Conn, lobbyID, votingID uuid.UUID, gameID string, points int) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	total, err := co.votes.Cast(ctx, lobbyID, votingID, c.UserID, gameID, points)
	if err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.PublishExcept(ctx, fabric.LobbyRoom(lobbyID), c, event(session.EventVoteCast, map[string]interface{}{
		"voting_id":   votingID.String(),
		"user_id":     c.UserID.String(),
		"game_id":     gameID,
		"points":      points,
		"total_votes": total,
	}))
	return ack(map[string]interface{}{"game_id": gameID, "total_votes": total}, pubErr)
}

// RemoveVote withdraws the caller's allocation for one candidate. Removing a
// vote that does not exist is a no-op that still acks success.
func (co *Coordinator) RemoveVote(ctx context.Context, c *fabric.Conn, lobbyID, votingID uuid.UUID, gameID string) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	total, err := co.votes.Remove(ctx, votingID, c.UserID, gameID)
	if err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.PublishExcept(ctx, fabric.LobbyRoom(lobbyID), c, event(session.EventVoteRemoved, map[string]interface{}{
		"voting_id":   votingID.String(),
		"user_id":     c.UserID.String(),
		"game_id":     gameID,
		"total_votes": total,
	}))
	return ack(map[string]interface{}{"game_id": gameID, "total_votes": total}, pubErr)
}

// EndVoting closes the session and broadcasts the ranked results.
func (co *Coordinator) EndVoting(ctx context.Context, c *fabric.Conn, lobbyID, votingID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	results, err := co.votes.End(ctx, lobbyID, votingID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}

	data := map[string]interface{}{
		"voting_id": votingID.String(),
		"results":   resultsPayload(results),
	}
	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventVotingEnded, data))
	return ack(data, pubErr)
}
