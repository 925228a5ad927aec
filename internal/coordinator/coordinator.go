// internal/coordinator/coordinator.go
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/fabric"
	"github.com/mindwars/realtime/internal/lobby"
	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
	"github.com/mindwars/realtime/internal/skip"
	"github.com/mindwars/realtime/internal/voting"
)

// Coordinator is the single entry point for inbound operations. It serializes
// operations per lobby, invokes the owning engine, and pairs every committed
// mutation with exactly one room broadcast. The ack goes back to the
// originating connection regardless of broadcast outcome: once state has
// committed, a delivery failure degrades the ack to a warning instead of
// reporting failure for work that succeeded.
type Coordinator struct {
	lobbies *lobby.Manager
	votes   *voting.Engine
	skips   *skip.Protocol
	store   session.Store
	fabric  *fabric.Fabric
	log     *logrus.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// New wires a coordinator over its engines and the channel fabric.
func New(lm *lobby.Manager, ve *voting.Engine, sp *skip.Protocol, store session.Store, f *fabric.Fabric, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		lobbies: lm,
		votes:   ve,
		skips:   sp,
		store:   store,
		fabric:  f,
		log:     logger,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

// lockLobby acquires the per-lobby mutex, creating it on first use. Two
// operations on the same lobby never interleave; operations on distinct
// lobbies run concurrently.
func (co *Coordinator) lockLobby(id uuid.UUID) func() {
	co.mu.Lock()
	l, ok := co.locks[id]
	if !ok {
		l = &sync.Mutex{}
		co.locks[id] = l
	}
	co.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// evictLock drops a closed lobby's mutex. Safe to call while no operation
// holds it; a straggler op on a closed lobby just recreates and fails on
// ErrLobbyClosed.
func (co *Coordinator) evictLock(id uuid.UUID) {
	co.mu.Lock()
	delete(co.locks, id)
	co.mu.Unlock()
}

// event wraps a payload in the outbound envelope.
func event(typ string, data map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":      typ,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// ack finishes a successful operation: if the broadcast failed after the
// mutation committed, the ack carries a warning.
func ack(data map[string]interface{}, publishErr error) session.Ack {
	a := session.OK(data)
	if publishErr != nil {
		a.Warning = "event delivery degraded: " + publishErr.Error()
	}
	return a
}

func lobbyPayload(l *models.Lobby) map[string]interface{} {
	p := map[string]interface{}{
		"id":                       l.ID.String(),
		"code":                     l.Code,
		"name":                     l.Name,
		"host_id":                  l.HostID.String(),
		"max_players":              l.MaxPlayers,
		"is_private":               l.IsPrivate,
		"status":                   l.Status,
		"current_round":            l.CurrentRound,
		"total_rounds":             l.TotalRounds,
		"voting_points_per_player": l.VotingPointsPerPlayer,
		"skip_rule":                l.SkipRule,
		"skip_time_limit_hours":    l.SkipTimeLimitHours,
		"created_at":               l.CreatedAt.Format(time.RFC3339),
	}
	if l.StartedAt != nil {
		p["started_at"] = l.StartedAt.Format(time.RFC3339)
	}
	return p
}

func userPayload(u *models.User) map[string]interface{} {
	if u == nil {
		return nil
	}
	return map[string]interface{}{
		"id":           u.ID.String(),
		"display_name": u.DisplayName,
		"avatar_url":   u.AvatarURL,
		"level":        u.Level,
	}
}

func skipPayload(s *models.SkipSession) map[string]interface{} {
	p := map[string]interface{}{
		"id":                s.ID.String(),
		"lobby_id":          s.LobbyID.String(),
		"battle_number":     s.BattleNumber,
		"player_id_to_skip": s.TargetID.String(),
		"initiated_by":      s.InitiatedBy.String(),
		"skip_rule":         s.SkipRule,
		"votes_required":    s.VotesRequired,
		"votes_count":       s.VotesCount,
		"phase":             s.Phase,
		"created_at":        s.CreatedAt.Format(time.RFC3339),
	}
	if s.ExecutedAt != nil {
		p["executed_at"] = s.ExecutedAt.Format(time.RFC3339)
	}
	return p
}

func resultsPayload(results []models.GameResult) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"game_id":     r.GameID,
			"total_votes": r.TotalVotes,
		})
	}
	return out
}

// Connected registers a fresh connection: it joins the participant's private
// room for directed notices and receives a connected frame.
func (co *Coordinator) Connected(c *fabric.Conn) {
	co.fabric.Join(fabric.UserRoom(c.UserID), c)
	c.Write(event(session.EventConnected, map[string]interface{}{
		"user_id": c.UserID.String(),
	}))
	co.log.WithField("user_id", c.UserID).Info("connection established")
}

// Disconnected handles a transport-level disconnect: the connection leaves
// every room it occupied and each lobby room is told the player went away.
// Membership rows are untouched; a disconnected member is still a member and
// may rejoin the rooms on reconnect.
func (co *Coordinator) Disconnected(ctx context.Context, c *fabric.Conn) {
	rooms := co.fabric.LeaveAll(c)
	for _, room := range rooms {
		if len(room) > 6 && room[:6] == "lobby:" {
			msg := event(session.EventPlayerDisconnected, map[string]interface{}{
				"user_id": c.UserID.String(),
			})
			if err := co.fabric.Publish(ctx, room, msg); err != nil {
				co.log.WithError(err).WithField("room", room).Warn("disconnect notice delivery degraded")
			}
		}
	}
	co.log.WithFields(logrus.Fields{"user_id": c.UserID, "rooms": len(rooms)}).Info("connection closed")
}
