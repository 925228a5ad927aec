// internal/database/skip.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindwars/realtime/internal/models"
	"github.com/mindwars/realtime/internal/session"
)

const skipColumns = `id, lobby_id, battle_number, player_id_to_skip, initiated_by,
	skip_rule, votes_required, votes_count, phase, time_limit_hours, created_at, executed_at`

func scanSkipSession(row pgx.Row) (*models.SkipSession, error) {
	var s models.SkipSession
	err := row.Scan(&s.ID, &s.LobbyID, &s.BattleNumber, &s.TargetID, &s.InitiatedBy,
		&s.SkipRule, &s.VotesRequired, &s.VotesCount, &s.Phase, &s.TimeLimitHours,
		&s.CreatedAt, &s.ExecutedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertSkipSession creates the session row and records the initiator's
// automatic vote in one transaction.
func (p *Postgres) InsertSkipSession(ctx context.Context, s *models.SkipSession) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO vote_to_skip_sessions
			(id, lobby_id, battle_number, player_id_to_skip, initiated_by,
			 skip_rule, votes_required, votes_count, phase, time_limit_hours, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		if _, err := tx.Exec(ctx, q,
			s.ID, s.LobbyID, s.BattleNumber, s.TargetID, s.InitiatedBy,
			s.SkipRule, s.VotesRequired, s.VotesCount, s.Phase, s.TimeLimitHours, s.CreatedAt,
		); err != nil {
			return err
		}
		if s.VotesCount > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO vote_to_skip_votes (session_id, voter_id, created_at) VALUES ($1, $2, $3)`,
				s.ID, s.InitiatedBy, s.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	return mapErr(err)
}

// GetSkipSession fetches a skip session by id.
func (p *Postgres) GetSkipSession(ctx context.Context, id uuid.UUID) (*models.SkipSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	s, err := scanSkipSession(p.pool.QueryRow(ctx,
		`SELECT `+skipColumns+` FROM vote_to_skip_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

// OpenSkipSession returns the non-terminal session for (lobby, battle,
// target), or ErrNotFound.
func (p *Postgres) OpenSkipSession(ctx context.Context, lobbyID uuid.UUID, battleNumber int, targetID uuid.UUID) (*models.SkipSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	s, err := scanSkipSession(p.pool.QueryRow(ctx,
		`SELECT `+skipColumns+` FROM vote_to_skip_sessions
		 WHERE lobby_id = $1 AND battle_number = $2 AND player_id_to_skip = $3
		   AND phase IN ('selection', 'active')
		 LIMIT 1`, lobbyID, battleNumber, targetID))
	if err != nil {
		return nil, mapErr(err)
	}
	return s, nil
}

// AddSkipVote records a voter's support and returns the updated count. The
// (session, voter) uniqueness constraint makes retries safe; a second vote
// from the same voter yields ErrDuplicateVote.
func (p *Postgres) AddSkipVote(ctx context.Context, sessionID, voterID uuid.UUID) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var count int
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO vote_to_skip_votes (session_id, voter_id, created_at) VALUES ($1, $2, NOW())`,
			sessionID, voterID); err != nil {
			return err
		}
		return tx.QueryRow(ctx,
			`UPDATE vote_to_skip_sessions SET votes_count = votes_count + 1
			 WHERE id = $1 RETURNING votes_count`, sessionID).Scan(&count)
	})
	if isUniqueViolation(err) {
		return 0, session.ErrDuplicateVote
	}
	return count, mapErr(err)
}

// RemoveSkipVote withdraws the voter's own vote and returns the updated
// count. ErrNoVoteToCancel if the voter had not voted.
func (p *Postgres) RemoveSkipVote(ctx context.Context, sessionID, voterID uuid.UUID) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var count int
	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM vote_to_skip_votes WHERE session_id = $1 AND voter_id = $2`,
			sessionID, voterID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return session.ErrNoVoteToCancel
		}
		return tx.QueryRow(ctx,
			`UPDATE vote_to_skip_sessions SET votes_count = votes_count - 1
			 WHERE id = $1 RETURNING votes_count`, sessionID).Scan(&count)
	})
	if err != nil {
		if err == session.ErrNoVoteToCancel {
			return 0, err
		}
		return 0, mapErr(err)
	}
	return count, nil
}

// MarkSkipExecuted transitions the session to executed. The phase guard in
// the WHERE clause makes the transition exactly-once even under concurrent
// threshold crossings.
func (p *Postgres) MarkSkipExecuted(ctx context.Context, sessionID uuid.UUID, at time.Time) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	tag, err := p.pool.Exec(ctx,
		`UPDATE vote_to_skip_sessions SET phase = 'executed', executed_at = $1
		 WHERE id = $2 AND phase = 'active'`, at, sessionID)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}

// ExpiredTimeBasedSessions lists active time_based sessions whose configured
// time limit has elapsed, for the periodic sweep.
func (p *Postgres) ExpiredTimeBasedSessions(ctx context.Context, now time.Time) ([]models.SkipSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT `+skipColumns+` FROM vote_to_skip_sessions
		 WHERE skip_rule = 'time_based' AND phase = 'active'
		   AND created_at + (time_limit_hours * INTERVAL '1 hour') <= $1`, now)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.SkipSession
	for rows.Next() {
		s, err := scanSkipSession(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		out = append(out, *s)
	}
	return out, mapErr(rows.Err())
}
