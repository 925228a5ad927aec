// internal/database/user.go
package database

import (
	"context"

	"github.com/google/uuid"

	"github.com/mindwars/realtime/internal/models"
)

// GetUser fetches a participant's display profile.
func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	var u models.User
	err := p.pool.QueryRow(ctx,
		`SELECT id, display_name, COALESCE(avatar_url, ''), level FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.DisplayName, &u.AvatarURL, &u.Level)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// UpsertUser creates or refreshes a display profile. Guest profiles are
// minted on first connect and refreshed on later ones.
func (p *Postgres) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, display_name, avatar_url, level)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 ON CONFLICT (id) DO UPDATE
		 SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url`,
		u.ID, u.DisplayName, u.AvatarURL, u.Level)
	return mapErr(err)
}
