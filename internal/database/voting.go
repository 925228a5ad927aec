// internal/database/voting.go
package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindwars/realtime/internal/models"
)

// InsertVotingSession creates an active voting session row.
func (p *Postgres) InsertVotingSession(ctx context.Context, vs *models.VotingSession) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO voting_sessions (id, lobby_id, status, points_per_player, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		vs.ID, vs.LobbyID, vs.Status, vs.PointsPerPlayer, vs.StartedAt)
	return mapErr(err)
}

func scanVotingSession(row pgx.Row) (*models.VotingSession, error) {
	var vs models.VotingSession
	err := row.Scan(&vs.ID, &vs.LobbyID, &vs.Status, &vs.PointsPerPlayer, &vs.StartedAt, &vs.EndedAt)
	if err != nil {
		return nil, err
	}
	return &vs, nil
}

// GetVotingSession fetches a voting session by id.
func (p *Postgres) GetVotingSession(ctx context.Context, id uuid.UUID) (*models.VotingSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	vs, err := scanVotingSession(p.pool.QueryRow(ctx,
		`SELECT id, lobby_id, status, points_per_player, started_at, ended_at
		 FROM voting_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return vs, nil
}

// ActiveVotingSession returns the lobby's active session, or ErrNotFound.
func (p *Postgres) ActiveVotingSession(ctx context.Context, lobbyID uuid.UUID) (*models.VotingSession, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	vs, err := scanVotingSession(p.pool.QueryRow(ctx,
		`SELECT id, lobby_id, status, points_per_player, started_at, ended_at
		 FROM voting_sessions WHERE lobby_id = $1 AND status = 'active'
		 ORDER BY started_at DESC LIMIT 1`, lobbyID))
	if err != nil {
		return nil, mapErr(err)
	}
	return vs, nil
}

// CompleteVotingSession marks the session completed and stamps ended_at.
func (p *Postgres) CompleteVotingSession(ctx context.Context, id uuid.UUID, endedAt time.Time) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`UPDATE voting_sessions SET status = 'completed', ended_at = $1 WHERE id = $2`,
		endedAt, id)
	return mapErr(err)
}

// UpsertVote inserts or replaces the (session, voter, game) allocation.
func (p *Postgres) UpsertVote(ctx context.Context, v *models.Vote) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO votes (voting_id, user_id, game_id, points, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (voting_id, user_id, game_id) DO UPDATE SET points = EXCLUDED.points`,
		v.VotingID, v.UserID, v.GameID, v.Points, v.CreatedAt)
	return mapErr(err)
}

// DeleteVote removes a voter's allocation for one candidate. Deleting an
// absent row is a no-op.
func (p *Postgres) DeleteVote(ctx context.Context, votingID, voterID uuid.UUID, gameID string) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`DELETE FROM votes WHERE voting_id = $1 AND user_id = $2 AND game_id = $3`,
		votingID, voterID, gameID)
	return mapErr(err)
}

// GameVoteTotal sums all points allocated to one candidate.
func (p *Postgres) GameVoteTotal(ctx context.Context, votingID uuid.UUID, gameID string) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var total int
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM votes WHERE voting_id = $1 AND game_id = $2`,
		votingID, gameID).Scan(&total)
	return total, mapErr(err)
}

// VoterPointsExcluding sums a voter's outstanding points across all
// candidates except one; used for the budget check before an upsert.
func (p *Postgres) VoterPointsExcluding(ctx context.Context, votingID, voterID uuid.UUID, excludeGameID string) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var total int
	err := p.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0) FROM votes
		 WHERE voting_id = $1 AND user_id = $2 AND game_id != $3`,
		votingID, voterID, excludeGameID).Scan(&total)
	return total, mapErr(err)
}

// VotingResults returns per-candidate totals, highest first, candidate id as
// a stable tiebreak.
func (p *Postgres) VotingResults(ctx context.Context, votingID uuid.UUID) ([]models.GameResult, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT game_id, SUM(points) AS total_votes
		 FROM votes WHERE voting_id = $1
		 GROUP BY game_id
		 ORDER BY total_votes DESC, game_id`, votingID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.GameResult
	for rows.Next() {
		var r models.GameResult
		if err := rows.Scan(&r.GameID, &r.TotalVotes); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err())
}
