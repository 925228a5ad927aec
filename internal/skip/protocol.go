// internal/skip/protocol.go
package skip

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

// Protocol runs quorum votes to forcibly skip an unresponsive participant:
// active -> {executed | cancelled}. Several sessions may run concurrently in
// one lobby as long as their targets differ.
type Protocol struct {
	store session.Store
	log   *logrus.Logger
}

// NewProtocol builds a skip-vote protocol on the given store.
func NewProtocol(store session.Store, logger *logrus.Logger) *Protocol {
	return &Protocol{store: store, log: logger}
}

// RequiredVotes computes the quorum for a rule given the eligible voter
// count (active members excluding the target).
//
//	majority:   ceil(eligible * 0.5) + 1
//	unanimous:  eligible
//	time_based: 0 (execution is driven by elapsed time, not votes)
func RequiredVotes(rule string, eligible int) int {
	switch rule {
	case models.SkipRuleMajority:
		return (eligible+1)/2 + 1
	case models.SkipRuleUnanimous:
		return eligible
	default: // time_based
		return 0
	}
}

// Initiate opens a skip session against a target for one battle. The
// initiator's vote is recorded automatically, so the session starts at 1
// vote. Rejections: self-targeting, an open session for the same
// (lobby, battle, target), or too few eligible voters for the rule.
func (p *Protocol) Initiate(ctx context.Context, lobbyID uuid.UUID, battleNumber int, initiatorID, targetID uuid.UUID) (*models.SkipSession, error) {
	if targetID == initiatorID {
		return nil, session.ErrCannotSkipSelf
	}

	member, err := p.store.IsLobbyPlayer(ctx, lobbyID, initiatorID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, session.ErrNotMember
	}
	targetMember, err := p.store.IsLobbyPlayer(ctx, lobbyID, targetID)
	if err != nil {
		return nil, err
	}
	if !targetMember {
		return nil, session.ErrNotMember
	}

	l, err := p.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	if l.Status == models.LobbyStatusClosed {
		return nil, session.ErrLobbyClosed
	}

	if _, err := p.store.OpenSkipSession(ctx, lobbyID, battleNumber, targetID); err == nil {
		return nil, session.ErrSkipInProgress
	} else if err != session.ErrNotFound {
		return nil, err
	}

	count, err := p.store.CountLobbyPlayers(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	eligible := count - 1 // active members excluding the target

	required := RequiredVotes(l.SkipRule, eligible)
	if l.SkipRule != models.SkipRuleTimeBased && eligible < 2 {
		return nil, session.ErrInsufficientPlayers
	}
	if eligible < 1 {
		// Cannot happen while initiator and target are distinct members,
		// but a quorum with nobody left to vote is rejected outright.
		return nil, session.ErrInsufficientPlayers
	}

	s := &models.SkipSession{
		ID:             uuid.New(),
		LobbyID:        lobbyID,
		BattleNumber:   battleNumber,
		TargetID:       targetID,
		InitiatedBy:    initiatorID,
		SkipRule:       l.SkipRule,
		VotesRequired:  required,
		VotesCount:     1, // the initiator's automatic vote
		Phase:          models.SkipPhaseActive,
		TimeLimitHours: l.SkipTimeLimitHours,
		CreatedAt:      time.Now().UTC(),
	}
	if err := p.store.InsertSkipSession(ctx, s); err != nil {
		return nil, err
	}

	p.log.WithFields(logrus.Fields{
		"lobby_id": lobbyID, "session_id": s.ID, "target_id": targetID,
		"initiator_id": initiatorID, "rule": s.SkipRule,
		"votes_required": required, "eligible": eligible,
	}).Info("skip vote initiated")
	return s, nil
}

// checkLobbyOpen verifies the session's lobby has not reached its terminal
// state. Closing a lobby stops its open skip sessions from accepting or
// shedding votes.
func (p *Protocol) checkLobbyOpen(ctx context.Context, lobbyID uuid.UUID) error {
	l, err := p.store.GetLobby(ctx, lobbyID)
	if err != nil {
		return err
	}
	if l.Status == models.LobbyStatusClosed {
		return session.ErrLobbyClosed
	}
	return nil
}

// CastResult describes the session after a vote was accepted.
type CastResult struct {
	Session    *models.SkipSession
	VotesCount int
	// Executed is true when this vote crossed the threshold and won the
	// exactly-once transition to executed.
	Executed bool
}

// Cast records a voter's support and, when the threshold is reached,
// transitions the session to executed exactly once. The increment and the
// threshold check-and-transition are atomic with respect to concurrent casts
// on the same session.
func (p *Protocol) Cast(ctx context.Context, sessionID, voterID uuid.UUID) (*CastResult, error) {
	s, err := p.store.GetSkipSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := p.checkLobbyOpen(ctx, s.LobbyID); err != nil {
		return nil, err
	}
	if s.Phase != models.SkipPhaseActive {
		return nil, session.ErrSkipNotActive
	}
	if voterID == s.TargetID {
		return nil, session.ErrCannotSkipSelf
	}

	member, err := p.store.IsLobbyPlayer(ctx, s.LobbyID, voterID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, session.ErrNotMember
	}

	count, err := p.store.AddSkipVote(ctx, sessionID, voterID)
	if err != nil {
		return nil, err
	}
	s.VotesCount = count

	res := &CastResult{Session: s, VotesCount: count}
	if s.VotesRequired > 0 && count >= s.VotesRequired {
		executed, err := p.store.MarkSkipExecuted(ctx, sessionID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		res.Executed = executed
		if executed {
			s.Phase = models.SkipPhaseExecuted
		}
	}

	p.log.WithFields(logrus.Fields{
		"session_id": sessionID, "voter_id": voterID,
		"votes": count, "required": s.VotesRequired, "executed": res.Executed,
	}).Info("skip vote cast")
	return res, nil
}

// Cancel withdraws the voter's own vote and returns the updated count.
// Cancellation never transitions the phase; a session sheds and accumulates
// votes freely while active.
func (p *Protocol) Cancel(ctx context.Context, sessionID, voterID uuid.UUID) (*CastResult, error) {
	s, err := p.store.GetSkipSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := p.checkLobbyOpen(ctx, s.LobbyID); err != nil {
		return nil, err
	}
	if s.Phase != models.SkipPhaseActive {
		return nil, session.ErrSkipNotActive
	}

	count, err := p.store.RemoveSkipVote(ctx, sessionID, voterID)
	if err != nil {
		return nil, err
	}
	s.VotesCount = count

	p.log.WithFields(logrus.Fields{
		"session_id": sessionID, "voter_id": voterID, "votes": count,
	}).Info("skip vote cancelled")
	return &CastResult{Session: s, VotesCount: count}, nil
}
