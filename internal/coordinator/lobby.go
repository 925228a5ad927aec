// internal/coordinator/lobby.go
package coordinator

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// CreateLobby creates a lobby with the caller as host and subscribes the
// connection to the new lobby room. Nobody else can be in the room yet, so
// there is no broadcast.
func (co *Coordinator) CreateLobby(ctx context.Context, c *fabric.Conn, req lobby.CreateRequest) session.Ack {
	l, err := co.lobbies.Create(ctx, c.UserID, req)
	if err != nil {
		return session.Fail(err)
	}

	co.fabric.Join(fabric.LobbyRoom(l.ID), c)
	return session.OK(map[string]interface{}{"lobby": lobbyPayload(l)})
}

// JoinLobby enrolls the caller by lobby id.
func (co *Coordinator) JoinLobby(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	res, err := co.lobbies.Join(ctx, lobbyID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}
	return co.finishJoin(ctx, c, res)
}

// JoinLobbyByCode enrolls the caller by human share code.
func (co *Coordinator) JoinLobbyByCode(ctx context.Context, c *fabric.Conn, code string) session.Ack {
	l, err := co.store.GetLobbyByCode(ctx, code)
	if err != nil {
		return session.Fail(err)
	}

	unlock := co.lockLobby(l.ID)
	defer unlock()

	res, err := co.lobbies.Join(ctx, l.ID, c.UserID)
	if err != nil {
		return session.Fail(err)
	}
	return co.finishJoin(ctx, c, res)
}

func (co *Coordinator) finishJoin(ctx context.Context, c *fabric.Conn, res *lobby.JoinResult) session.Ack {
	room := fabric.LobbyRoom(res.Lobby.ID)
	co.fabric.Join(room, c)

	// A rejoin added no membership, so the roster did not change and the
	// room hears nothing.
	var pubErr error
	if !res.Rejoined {
		msg := event(session.EventPlayerJoined, map[string]interface{}{
			"lobby_id": res.Lobby.ID.String(),
			"user_id":  c.UserID.String(),
			"profile":  userPayload(res.Profile),
		})
		pubErr = co.fabric.PublishExcept(ctx, room, c, msg)
	}

	return ack(map[string]interface{}{
		"lobby":    lobbyPayload(res.Lobby),
		"rejoined": res.Rejoined,
	}, pubErr)
}

// LeaveLobby removes the caller's membership and unsubscribes the connection.
func (co *Coordinator) LeaveLobby(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	if err := co.lobbies.Leave(ctx, lobbyID, c.UserID); err != nil {
		return session.Fail(err)
	}

	room := fabric.LobbyRoom(lobbyID)
	co.fabric.Leave(room, c)
	pubErr := co.fabric.Publish(ctx, room, event(session.EventPlayerLeft, map[string]interface{}{
		"lobby_id": lobbyID.String(),
		"user_id":  c.UserID.String(),
	}))
	return ack(nil, pubErr)
}

// KickPlayer removes a participant at the host's request. The room hears
// player-kicked; the target additionally gets a directed kicked-from-lobby on
// their private room so their client can drop the lobby view.
func (co *Coordinator) KickPlayer(ctx context.Context, c *fabric.Conn, lobbyID, targetID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	if err := co.lobbies.Kick(ctx, lobbyID, c.UserID, targetID); err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventPlayerKicked, map[string]interface{}{
		"lobby_id": lobbyID.String(),
		"user_id":  targetID.String(),
	}))
	if err := co.fabric.Publish(ctx, fabric.UserRoom(targetID), event(session.EventKickedFromLobby, map[string]interface{}{
		"lobby_id": lobbyID.String(),
	})); err != nil && pubErr == nil {
		pubErr = err
	}
	return ack(nil, pubErr)
}

// TransferHost hands host privileges to another active member.
func (co *Coordinator) TransferHost(ctx context.Context, c *fabric.Conn, lobbyID, newHostID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	if err := co.lobbies.TransferHost(ctx, lobbyID, c.UserID, newHostID); err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventHostTransferred, map[string]interface{}{
		"lobby_id":    lobbyID.String(),
		"old_host_id": c.UserID.String(),
		"new_host_id": newHostID.String(),
	}))
	return ack(nil, pubErr)
}

// UpdateLobbySettings applies a host's partial settings patch and broadcasts
// the updated lobby.
func (co *Coordinator) UpdateLobbySettings(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID, patch models.SettingsPatch) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	l, err := co.lobbies.UpdateSettings(ctx, lobbyID, c.UserID, patch)
	if err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventSettingsUpdated, map[string]interface{}{
		"lobby": lobbyPayload(l),
	}))
	return ack(map[string]interface{}{"lobby": lobbyPayload(l)}, pubErr)
}

// StartGame transitions the lobby into play at the host's request.
func (co *Coordinator) StartGame(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)
	defer unlock()

	if err := co.lobbies.StartGame(ctx, lobbyID, c.UserID); err != nil {
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventGameStarted, map[string]interface{}{
		"lobby_id": lobbyID.String(),
	}))
	return ack(nil, pubErr)
}

// CloseLobby performs the terminal transition and retires the lobby's
// serialization lock.
func (co *Coordinator) CloseLobby(ctx context.Context, c *fabric.Conn, lobbyID uuid.UUID) session.Ack {
	unlock := co.lockLobby(lobbyID)

	if err := co.lobbies.Close(ctx, lobbyID, c.UserID); err != nil {
		unlock()
		return session.Fail(err)
	}

	pubErr := co.fabric.Publish(ctx, fabric.LobbyRoom(lobbyID), event(session.EventLobbyClosed, map[string]interface{}{
		"lobby_id": lobbyID.String(),
	}))
	unlock()
	co.evictLock(lobbyID)
	return ack(nil, pubErr)
}

// ListLobbies returns public lobby summaries. Read-only, so no lock and no
// broadcast.
func (co *Coordinator) ListLobbies(ctx context.Context, status string, limit int) session.Ack {
	summaries, err := co.lobbies.List(ctx, status, limit)
	if err != nil {
		return session.Fail(err)
	}

	out := make([]map[string]interface{}, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, map[string]interface{}{
			"id":                    s.ID.String(),
			"code":                  s.Code,
			"name":                  s.Name,
			"host_name":             s.HostName,
			"max_players":           s.MaxPlayers,
			"player_count":          s.PlayerCount,
			"status":                s.Status,
			"skip_rule":             s.SkipRule,
			"skip_time_limit_hours": s.SkipTimeLimitHours,
		})
	}
	return session.OK(map[string]interface{}{"lobbies": out})
}
