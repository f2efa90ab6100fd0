package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"pushauth/backend/internal/challenge/domain"
	"pushauth/backend/internal/db"
)

const challengeColumns = `id, user_id, device_id, nonce, status, action, created_at, expires_at, verified_at`

// SQLRepository implements Repository on database/sql for Postgres or SQLite.
// Transition is a single conditional UPDATE checked by RowsAffected.
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewPostgresRepository returns a challenge repository backed by Postgres.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a challenge repository backed by SQLite.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.SQLite}
}

// GetByID returns the challenge for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Challenge, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+challengeColumns+` FROM challenges WHERE id = $1`), id)
	c, err := scanChallenge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *SQLRepository) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO challenges (`+challengeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`),
		c.ID, c.UserID, c.DeviceID, c.Nonce, string(c.Status), c.Action,
		c.CreatedAt.UTC(), c.ExpiresAt.UTC(), nullTime(c.VerifiedAt),
	)
	if r.dialect.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *SQLRepository) ListPendingByDevice(ctx context.Context, deviceID string) ([]*domain.Challenge, error) {
	return r.list(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE device_id = $1 AND status = 'pending' ORDER BY created_at, id`, deviceID)
}

func (r *SQLRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.Challenge, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `SELECT `+challengeColumns+` FROM challenges
		WHERE status = 'pending' AND expires_at < $1 ORDER BY expires_at LIMIT $2`, now.UTC(), limit)
}

func (r *SQLRepository) Transition(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`UPDATE challenges SET status = $1, verified_at = $2 WHERE id = $3 AND status = $4`),
		string(to), at.UTC(), id, string(from),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Challenge, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChallenge(s scanner) (*domain.Challenge, error) {
	var (
		c        domain.Challenge
		status   string
		verified sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.UserID, &c.DeviceID, &c.Nonce, &status, &c.Action, &c.CreatedAt, &c.ExpiresAt, &verified); err != nil {
		return nil, err
	}
	c.Status = domain.ParseStatus(status)
	if verified.Valid {
		t := verified.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
