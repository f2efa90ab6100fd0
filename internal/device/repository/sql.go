package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pushauth/backend/internal/db"
	"pushauth/backend/internal/device/domain"
	"pushauth/backend/internal/signature"
)

const deviceColumns = `id, user_id, public_key, algorithm, push_address, metadata, last_seen_at, created_at`

// SQLRepository implements Repository on database/sql for Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewPostgresRepository returns a device repository backed by Postgres.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a device repository backed by SQLite.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.SQLite}
}

// GetByID returns the device for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.Device, error) {
	row := r.db.QueryRowContext(ctx, r.dialect.Rebind(`SELECT `+deviceColumns+` FROM devices WHERE id = $1`), id)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *SQLRepository) Create(ctx context.Context, d *domain.Device) error {
	meta, err := json.Marshal(metadataOrEmpty(d.Metadata))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO devices (`+deviceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`),
		d.ID, d.UserID, d.PublicKey.Key, string(d.PublicKey.Algorithm), nullString(d.PushAddress),
		string(meta), nullTime(d.LastSeenAt), d.CreatedAt.UTC(),
	)
	if r.dialect.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *SQLRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Device, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(
		`SELECT `+deviceColumns+` FROM devices WHERE user_id = $1 ORDER BY created_at, id`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *SQLRepository) UpdatePushAddress(ctx context.Context, id, address string) error {
	return r.updateOne(ctx, `UPDATE devices SET push_address = $1 WHERE id = $2`, nullString(address), id)
}

func (r *SQLRepository) UpdateLastSeen(ctx context.Context, id string, at time.Time) error {
	return r.updateOne(ctx, `UPDATE devices SET last_seen_at = $1 WHERE id = $2`, at.UTC(), id)
}

func (r *SQLRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*domain.Device, error) {
	var (
		d        domain.Device
		alg      string
		push     sql.NullString
		meta     []byte
		lastSeen sql.NullTime
	)
	if err := s.Scan(&d.ID, &d.UserID, &d.PublicKey.Key, &alg, &push, &meta, &lastSeen, &d.CreatedAt); err != nil {
		return nil, err
	}
	d.PublicKey.Algorithm = signature.Algorithm(alg)
	d.PushAddress = push.String
	if lastSeen.Valid {
		t := lastSeen.Time
		d.LastSeenAt = &t
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("device %s: metadata: %w", d.ID, err)
		}
	}
	return &d, nil
}

func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
