// internal/database/db.go
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindwars/realtime/internal/session"
)

// DefaultQueryTimeout bounds every store call so no operation blocks
// indefinitely. On expiry the operation fails with ErrStoreUnavailable and is
// safely retryable by the caller.
const DefaultQueryTimeout = 5 * time.Second

// Postgres implements session.Store on a pgx connection pool.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// Connect parses the connection string, creates the pool, and verifies the
// connection with a bounded ping.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultQueryTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return &Postgres{pool: pool, timeout: DefaultQueryTimeout}, nil
}

// Close releases the underlying pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// withTimeout derives the bounded context used for every query.
func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := p.timeout
	if d <= 0 {
		d = DefaultQueryTimeout
	}
	return context.WithTimeout(ctx, d)
}

// mapErr translates driver errors into the session error taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return session.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return session.ErrStoreUnavailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	// Anything else from the wire (broken pool, network) is transient.
	return fmt.Errorf("%w: %v", session.ErrStoreUnavailable, err)
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
