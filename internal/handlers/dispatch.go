// internal/handlers/dispatch.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/coordinator"
	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// dispatch routes one inbound packet to its coordinator operation and writes
// the ack frame back on the originating connection.
func dispatch(ctx context.Context, conn *fabric.Conn, co *coordinator.Coordinator, p packet, logger *logrus.Logger) {
	var a session.Ack

	switch p.Type {
	case "create-lobby":
		var req lobby.CreateRequest
		if err := decode(p.Data, &req); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.CreateLobby(ctx, conn, req)

	case "join-lobby":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.JoinLobby(ctx, conn, body.LobbyID)

	case "join-lobby-by-code":
		var body struct {
			Code string `json:"code"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.JoinLobbyByCode(ctx, conn, body.Code)

	case "leave-lobby":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.LeaveLobby(ctx, conn, body.LobbyID)

	case "kick-player":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
			UserID  uuid.UUID `json:"user_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.KickPlayer(ctx, conn, body.LobbyID, body.UserID)

	case "transfer-host":
		var body struct {
			LobbyID   uuid.UUID `json:"lobby_id"`
			NewHostID uuid.UUID `json:"new_host_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.TransferHost(ctx, conn, body.LobbyID, body.NewHostID)

	case "update-lobby-settings":
		var body struct {
			LobbyID uuid.UUID            `json:"lobby_id"`
			Patch   models.SettingsPatch `json:"settings"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.UpdateLobbySettings(ctx, conn, body.LobbyID, body.Patch)

	case "start-game":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.StartGame(ctx, conn, body.LobbyID)

	case "close-lobby":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.CloseLobby(ctx, conn, body.LobbyID)

	case "list-lobbies":
		var body struct {
			Status string `json:"status"`
			Limit  int    `json:"limit"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.ListLobbies(ctx, body.Status, body.Limit)

	case "start-voting":
		var body struct {
			LobbyID uuid.UUID `json:"lobby_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.StartVoting(ctx, conn, body.LobbyID)

	case "vote-game", "cast-vote":
		var body struct {
			LobbyID  uuid.UUID `json:"lobby_id"`
			VotingID uuid.UUID `json:"voting_id"`
			GameID   string    `json:"game_id"`
			Points   int       `json:"points"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.CastVote(ctx, conn, body.LobbyID, body.VotingID, body.GameID, body.Points)

	case "remove-vote":
		var body struct {
			LobbyID  uuid.UUID `json:"lobby_id"`
			VotingID uuid.UUID `json:"voting_id"`
			GameID   string    `json:"game_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.RemoveVote(ctx, conn, body.LobbyID, body.VotingID, body.GameID)

	case "end-voting":
		var body struct {
			LobbyID  uuid.UUID `json:"lobby_id"`
			VotingID uuid.UUID `json:"voting_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.EndVoting(ctx, conn, body.LobbyID, body.VotingID)

	case "initiate-skip-vote":
		var body struct {
			LobbyID      uuid.UUID `json:"lobby_id"`
			BattleNumber int       `json:"battle_number"`
			TargetID     uuid.UUID `json:"player_id_to_skip"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.InitiateSkipVote(ctx, conn, body.LobbyID, body.BattleNumber, body.TargetID)

	case "cast-skip-vote":
		var body struct {
			SessionID uuid.UUID `json:"session_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.CastSkipVote(ctx, conn, body.SessionID)

	case "cancel-skip-vote":
		var body struct {
			SessionID uuid.UUID `json:"session_id"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.CancelSkipVote(ctx, conn, body.SessionID)

	case "make-turn":
		var body struct {
			LobbyID uuid.UUID              `json:"lobby_id"`
			Turn    map[string]interface{} `json:"turn"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.MakeTurn(ctx, conn, body.LobbyID, body.Turn)

	case "submit-game-result":
		var body struct {
			LobbyID uuid.UUID              `json:"lobby_id"`
			Result  map[string]interface{} `json:"result"`
		}
		if err := decode(p.Data, &body); err != nil {
			a = session.Fail(err)
			break
		}
		a = co.SubmitGameResult(ctx, conn, body.LobbyID, body.Result)

	default:
		logger.Warnf("Unknown action %q from user %v", p.Type, conn.UserID)
		a = session.Fail(fmt.Errorf("unknown action type: %s", p.Type))
	}

	writeAck(conn, p.ReqID, a)
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// writeAck sends the operation result back to the originator as an ack frame.
func writeAck(conn *fabric.Conn, reqID string, a session.Ack) {
	frame := map[string]interface{}{
		"type":    "ack",
		"success": a.Success,
	}
	if reqID != "" {
		frame["req_id"] = reqID
	}
	if a.Data != nil {
		frame["data"] = a.Data
	}
	if a.Error != "" {
		frame["error"] = a.Error
	}
	if a.Warning != "" {
		frame["warning"] = a.Warning
	}
	conn.Write(frame)
}
