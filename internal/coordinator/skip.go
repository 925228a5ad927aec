// internal/coordinator/skip.go
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/session"
)

// InitiateSkipVote opens a quorum vote to skip a participant for one battle.
func (co *Coordinator) InitiateSkipVote(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID, battleNumber int, targetID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	s, err := co.skips.Initiate(ctx, lobbyID, battleNumber, c.UserID, targetID)
	if err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventSkipVoteInitiated, map[string]interface{}{
		"session": skipPayload(s),
	}))
	return ack(map[string]interface{}{"session": skipPayload(s)}, pubErr)
}

// CastSkipVote supports an open skip session. Crossing the threshold turns
// this cast's broadcast into skip-vote-executed instead of skip-vote-updated;
// only the cast that won the transition sends it.
func (co *Coordinator) CastSkipVote(ctx context.Context, c *fabric.Conn, sessionID uuid.UUID) session.Ack {
	s, err := co.store.GetSkipSession(ctx, sessionID)
	if err != nil {
		return session.Fail(err)
	}

	unlock := co.lockLobby(s.LobbyID)
	defer unlock()

	res, err := co.skips.Cast(ctx, sessionID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}

	typ := session.EventSkipVoteUpdated
	if res.Executed {
		typ = session.EventSkipVoteExecuted
	}
	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(s.LobbyID), event(typ, map[string]interface{}{
		"session": skipPayload(res.Session),
	}))
	return ack(map[string]interface{}{
		"votes_count": res.VotesCount,
		"executed":    res.Executed,
	}, pubErr)
}

// CancelSkipVote withdraws the caller's own skip vote.
func (co *Coordinator) CancelSkipVote(ctx context.Context, c *fabric.Conn, sessionID uuid.UUID) session.Ack {
	s, err := co.store.GetSkipSession(ctx, sessionID)
	if err != nil {
		return session.Fail(err)
	}

	unlock := co.lockLobby(s.LobbyID)
	defer unlock()

	res, err := co.skips.Cancel(ctx, sessionID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(s.LobbyID), event(session.EventSkipVoteUpdated, map[string]interface{}{
		"session":   skipPayload(res.Session),
		"cancelled": true,
	}))
	return ack(map[string]interface{}{"votes_count": res.VotesCount}, pubErr)
}

// SweepTimeBasedSkips executes expired time_based sessions and notifies their
// lobbies. Driven on an interval by the cron scheduler in main.
func (co *Coordinator) SweepTimeBasedSkips(ctx context.Context) {
	executed, err := co.skips.SweepExpired(ctx, time.Now().UTC())
	if err != nil {
		co.log.WithError(err).Warn("time-based skip sweep failed")
		return
	}

	for _, res := range executed {
		room := fabric.LobbyRoom(res.Session.LobbyID)
		if err := co.fabric.Publish(ctx, room, event(session.EventSkipVoteExecuted, map[string]interface{}{
			"session": skipPayload(res.Session),
		})); err != nil {
			co.log.WithError(err).WithField("room", room).Warn("skip execution notice delivery degraded")
		}
	}
}
