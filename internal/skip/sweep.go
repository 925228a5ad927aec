// internal/skip/sweep.go
package skip

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/models"
)

// SweepExpired executes every active time_based session whose time limit has
// elapsed as of now. Each transition goes through the same exactly-once path
// as a threshold execution, so a concurrent sweep or cast cannot double-fire.
// Returns the sessions this sweep actually executed.
func (p *Protocol) SweepExpired(ctx context.Context, now time.Time) ([]CastResult, error) {
	expired, err := p.store.ExpiredTimeBasedSessions(ctx, now)
	if err != nil {
		return nil, err
	}

	var executed []CastResult
	for i := range expired {
		s := expired[i]
		won, err := p.store.MarkSkipExecuted(ctx, s.ID, now)
		if err != nil {
			p.log.WithError(err).WithField("session_id", s.ID).Warn("failed to execute expired skip session")
			continue
		}
		if !won {
			continue
		}
		s.Phase = models.SkipPhaseExecuted
		executed = append(executed, CastResult{Session: &s, VotesCount: s.VotesCount, Executed: true})

		p.log.WithFields(logrus.Fields{
			"lobby_id": s.LobbyID, "session_id": s.ID, "target_id": s.TargetID,
		}).Info("time-based skip executed")
	}
	return executed, nil
}
