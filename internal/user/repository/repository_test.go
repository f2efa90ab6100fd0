package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pushauth/backend/internal/db"
	"pushauth/backend/internal/user/domain"
)

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	conn, err := db.OpenSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"sqlite": NewSQLiteRepository(conn),
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			u := &domain.User{ID: "user-1", Email: "alice@example.com", Name: "Alice", CreatedAt: now, UpdatedAt: now}
			if err := repo.Create(ctx, u); err != nil {
				t.Fatalf("Create: %v", err)
			}
			got, err := repo.GetByID(ctx, "user-1")
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if got == nil || got.Email != "alice@example.com" || got.Status != domain.UserStatusActive {
				t.Fatalf("GetByID = %+v", got)
			}
			if !got.CreatedAt.Equal(now) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, now)
			}
			byEmail, err := repo.GetByEmail(ctx, "alice@example.com")
			if err != nil || byEmail == nil || byEmail.ID != "user-1" {
				t.Errorf("GetByEmail = %+v, %v", byEmail, err)
			}
			missing, err := repo.GetByID(ctx, "nope")
			if err != nil || missing != nil {
				t.Errorf("GetByID(missing) = %+v, %v; want nil, nil", missing, err)
			}
		})
	}
}

func TestRepository_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Create(ctx, &domain.User{ID: "u", Email: "a@example.com", CreatedAt: now, UpdatedAt: now}); err != nil {
				t.Fatalf("Create: %v", err)
			}
			err := repo.Create(ctx, &domain.User{ID: "u2", Email: "a@example.com", CreatedAt: now, UpdatedAt: now})
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
			}
			err = repo.Create(ctx, &domain.User{ID: "u", Email: "b@example.com", CreatedAt: now, UpdatedAt: now})
			if !errors.Is(err, ErrDuplicate) {
				t.Errorf("duplicate id err = %v, want ErrDuplicate", err)
			}
		})
	}
}

func TestRepository_CreateInvalid(t *testing.T) {
	for name, repo := range repositories(t) {
		if err := repo.Create(context.Background(), &domain.User{ID: "u"}); err == nil {
			t.Errorf("%s: Create without email should fail", name)
		}
	}
}
