package repository

import (
	"context"
	"database/sql"
	"errors"

	"pushauth/backend/internal/db"
	"pushauth/backend/internal/user/domain"
)

const userColumns = `id, email, name, status, password_hash, created_at, updated_at`

// SQLRepository implements Repository on database/sql for Postgres or SQLite.
type SQLRepository struct {
	db      *sql.DB
	dialect db.Dialect
}

// NewPostgresRepository returns a user repository backed by Postgres.
func NewPostgresRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.Postgres}
}

// NewSQLiteRepository returns a user repository backed by SQLite.
func NewSQLiteRepository(conn *sql.DB) *SQLRepository {
	return &SQLRepository{db: conn, dialect: db.SQLite}
}

// GetByID returns the user for id, or nil if not found.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail returns the user for email, or nil if not found.
func (r *SQLRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var (
		u    domain.User
		hash sql.NullString
	)
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.Status, &hash, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash.String
	return &u, nil
}

// Create persists a new user. Returns ErrDuplicate if the id or email exists.
func (r *SQLRepository) Create(ctx context.Context, u *domain.User) error {
	if err := u.Validate(); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`),
		u.ID, u.Email, u.Name, string(u.Status), nullString(u.PasswordHash), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	if r.dialect.IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
