// internal/database/lobby.go
package database

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mindwars/realtime/internal/models"
)

// InsertLobby creates the lobby row and enrolls the host as the first member
// in a single transaction.
func (p *Postgres) InsertLobby(ctx context.Context, l *models.Lobby) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	err := pgx.BeginTxFunc(ctx, p.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
		INSERT INTO lobbies (id, code, name, host_id, max_players, is_private, status,
		                     current_round, total_rounds, voting_points_per_player,
		                     skip_rule, skip_time_limit_hours, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`
		if _, err := tx.Exec(ctx, q,
			l.ID, l.Code, l.Name, l.HostID, l.MaxPlayers, l.IsPrivate, l.Status,
			l.CurrentRound, l.TotalRounds, l.VotingPointsPerPlayer,
			l.SkipRule, l.SkipTimeLimitHours, l.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO lobby_players (lobby_id, user_id, joined_at) VALUES ($1, $2, $3)`,
			l.ID, l.HostID, l.CreatedAt,
		)
		return err
	})
	return mapErr(err)
}

const lobbyColumns = `id, code, name, host_id, max_players, is_private, status,
	current_round, total_rounds, voting_points_per_player,
	skip_rule, skip_time_limit_hours, created_at, started_at`

func scanLobby(row pgx.Row) (*models.Lobby, error) {
	var l models.Lobby
	err := row.Scan(
		&l.ID, &l.Code, &l.Name, &l.HostID, &l.MaxPlayers, &l.IsPrivate, &l.Status,
		&l.CurrentRound, &l.TotalRounds, &l.VotingPointsPerPlayer,
		&l.SkipRule, &l.SkipTimeLimitHours, &l.CreatedAt, &l.StartedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLobby fetches a lobby by ID.
func (p *Postgres) GetLobby(ctx context.Context, id uuid.UUID) (*models.Lobby, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	l, err := scanLobby(p.pool.QueryRow(ctx,
		`SELECT `+lobbyColumns+` FROM lobbies WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return l, nil
}

// GetLobbyByCode fetches a lobby by its human code, case-insensitively.
func (p *Postgres) GetLobbyByCode(ctx context.Context, code string) (*models.Lobby, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	l, err := scanLobby(p.pool.QueryRow(ctx,
		`SELECT `+lobbyColumns+` FROM lobbies WHERE code = $1`, strings.ToUpper(code)))
	if err != nil {
		return nil, mapErr(err)
	}
	return l, nil
}

// LobbyCodeExists reports whether any lobby already uses the given code.
func (p *Postgres) LobbyCodeExists(ctx context.Context, code string) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var tmp int
	err := p.pool.QueryRow(ctx,
		`SELECT 1 FROM lobbies WHERE code = $1 LIMIT 1`, strings.ToUpper(code)).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// UpdateLobbySettings applies a partial settings patch. Only non-nil fields
// are written.
func (p *Postgres) UpdateLobbySettings(ctx context.Context, id uuid.UUID, patch models.SettingsPatch) error {
	if patch.Empty() {
		return nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	updates := []string{}
	values := []interface{}{}
	n := 1
	add := func(col string, v interface{}) {
		updates = append(updates, col+" = $"+strconv.Itoa(n))
		values = append(values, v)
		n++
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.MaxPlayers != nil {
		add("max_players", *patch.MaxPlayers)
	}
	if patch.TotalRounds != nil {
		add("total_rounds", *patch.TotalRounds)
	}
	if patch.VotingPointsPerPlayer != nil {
		add("voting_points_per_player", *patch.VotingPointsPerPlayer)
	}
	if patch.SkipRule != nil {
		add("skip_rule", *patch.SkipRule)
	}
	if patch.SkipTimeLimitHours != nil {
		add("skip_time_limit_hours", *patch.SkipTimeLimitHours)
	}
	values = append(values, id)

	q := `UPDATE lobbies SET ` + strings.Join(updates, ", ") + ` WHERE id = $` + strconv.Itoa(n)
	_, err := p.pool.Exec(ctx, q, values...)
	return mapErr(err)
}

// SetLobbyHost reassigns the host.
func (p *Postgres) SetLobbyHost(ctx context.Context, id, hostID uuid.UUID) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx, `UPDATE lobbies SET host_id = $1 WHERE id = $2`, hostID, id)
	return mapErr(err)
}

// SetLobbyStatus transitions the lobby status, stamping started_at when given.
func (p *Postgres) SetLobbyStatus(ctx context.Context, id uuid.UUID, status string, startedAt *time.Time) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var err error
	if startedAt != nil {
		_, err = p.pool.Exec(ctx,
			`UPDATE lobbies SET status = $1, started_at = $2 WHERE id = $3`, status, *startedAt, id)
	} else {
		_, err = p.pool.Exec(ctx,
			`UPDATE lobbies SET status = $1 WHERE id = $2`, status, id)
	}
	return mapErr(err)
}

// ListLobbies returns public lobbies with the given status, newest first.
func (p *Postgres) ListLobbies(ctx context.Context, status string, limit int) ([]models.LobbySummary, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	q := `
	SELECT l.id, l.code, l.name, u.display_name,
	       l.max_players,
	       (SELECT COUNT(*) FROM lobby_players WHERE lobby_id = l.id),
	       l.status, l.skip_rule, l.skip_time_limit_hours, l.created_at
	FROM lobbies l
	JOIN users u ON l.host_id = u.id
	WHERE l.is_private = false AND l.status = $1
	ORDER BY l.created_at DESC
	LIMIT $2
	`
	rows, err := p.pool.Query(ctx, q, status, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []models.LobbySummary
	for rows.Next() {
		var s models.LobbySummary
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.HostName, &s.MaxPlayers,
			&s.PlayerCount, &s.Status, &s.SkipRule, &s.SkipTimeLimitHours, &s.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		out = append(out, s)
	}
	return out, mapErr(rows.Err())
}

// AddLobbyPlayer inserts a membership row.
func (p *Postgres) AddLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO lobby_players (lobby_id, user_id, joined_at) VALUES ($1, $2, NOW())`,
		lobbyID, userID)
	if isUniqueViolation(err) {
		// Already a member; join is idempotent.
		return nil
	}
	return mapErr(err)
}

// RemoveLobbyPlayer deletes a membership row. Removing an absent member is a
// no-op.
func (p *Postgres) RemoveLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`DELETE FROM lobby_players WHERE lobby_id = $1 AND user_id = $2`, lobbyID, userID)
	return mapErr(err)
}

// IsLobbyPlayer checks for an active membership.
func (p *Postgres) IsLobbyPlayer(ctx context.Context, lobbyID, userID uuid.UUID) (bool, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var tmp int
	err := p.pool.QueryRow(ctx,
		`SELECT 1 FROM lobby_players WHERE lobby_id = $1 AND user_id = $2 LIMIT 1`,
		lobbyID, userID).Scan(&tmp)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, mapErr(err)
	}
	return true, nil
}

// CountLobbyPlayers returns the active member count.
func (p *Postgres) CountLobbyPlayers(ctx context.Context, lobbyID uuid.UUID) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM lobby_players WHERE lobby_id = $1`, lobbyID).Scan(&n)
	return n, mapErr(err)
}

// ListLobbyPlayers returns member ids ordered by join time.
func (p *Postgres) ListLobbyPlayers(ctx context.Context, lobbyID uuid.UUID) ([]uuid.UUID, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT user_id FROM lobby_players WHERE lobby_id = $1 ORDER BY joined_at`, lobbyID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, mapErr(err)
		}
		ids = append(ids, id)
	}
	return ids, mapErr(rows.Err())
}
