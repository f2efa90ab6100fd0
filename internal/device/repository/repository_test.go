package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pushauth/backend/internal/db"
	"pushauth/backend/internal/device/domain"
	"pushauth/backend/internal/signature"
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

func newDevice(id, userID string, created time.Time) *domain.Device {
	return &domain.Device{
		ID:        id,
		UserID:    userID,
		PublicKey: domain.PublicKey{Algorithm: signature.Ed25519, Key: []byte{1, 2, 3, 4}},
		Metadata:  map[string]string{"model": "pixel"},
		CreatedAt: created,
	}
}

func TestRepository_CreateGetList(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Create(ctx, newDevice("d2", "u1", now.Add(time.Second))); err != nil {
				t.Fatalf("Create d2: %v", err)
			}
			if err := repo.Create(ctx, newDevice("d1", "u1", now)); err != nil {
				t.Fatalf("Create d1: %v", err)
			}
			if err := repo.Create(ctx, newDevice("d3", "u2", now)); err != nil {
				t.Fatalf("Create d3: %v", err)
			}
			if err := repo.Create(ctx, newDevice("d1", "u1", now)); !errors.Is(err, ErrDuplicate) {
				t.Errorf("duplicate Create err = %v, want ErrDuplicate", err)
			}

			d, err := repo.GetByID(ctx, "d1")
			if err != nil || d == nil {
				t.Fatalf("GetByID: %+v, %v", d, err)
			}
			if d.PublicKey.Algorithm != signature.Ed25519 || string(d.PublicKey.Key) != string([]byte{1, 2, 3, 4}) {
				t.Errorf("public key = %+v", d.PublicKey)
			}
			if d.Metadata["model"] != "pixel" || d.HasPushAddress() || d.LastSeenAt != nil {
				t.Errorf("device = %+v", d)
			}

			list, err := repo.ListByUser(ctx, "u1")
			if err != nil {
				t.Fatalf("ListByUser: %v", err)
			}
			if len(list) != 2 || list[0].ID != "d1" || list[1].ID != "d2" {
				t.Errorf("ListByUser ids = %v", ids(list))
			}
			missing, err := repo.GetByID(ctx, "nope")
			if err != nil || missing != nil {
				t.Errorf("GetByID(missing) = %+v, %v", missing, err)
			}
		})
	}
}

func TestRepository_Updates(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			if err := repo.Create(ctx, newDevice("d1", "u1", now)); err != nil {
				t.Fatalf("Create: %v", err)
			}
			if err := repo.UpdatePushAddress(ctx, "d1", "fcm-token"); err != nil {
				t.Fatalf("UpdatePushAddress: %v", err)
			}
			seen := now.Add(time.Minute)
			if err := repo.UpdateLastSeen(ctx, "d1", seen); err != nil {
				t.Fatalf("UpdateLastSeen: %v", err)
			}
			d, err := repo.GetByID(ctx, "d1")
			if err != nil {
				t.Fatalf("GetByID: %v", err)
			}
			if d.PushAddress != "fcm-token" {
				t.Errorf("PushAddress = %q", d.PushAddress)
			}
			if d.LastSeenAt == nil || !d.LastSeenAt.Equal(seen) {
				t.Errorf("LastSeenAt = %v, want %v", d.LastSeenAt, seen)
			}
			if err := repo.UpdatePushAddress(ctx, "nope", "x"); !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdatePushAddress(missing) err = %v, want ErrNotFound", err)
			}
			if err := repo.UpdateLastSeen(ctx, "nope", seen); !errors.Is(err, ErrNotFound) {
				t.Errorf("UpdateLastSeen(missing) err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	if err := repo.Create(ctx, newDevice("d1", "u1", time.Now())); err != nil {
		t.Fatalf("Create: %v", err)
	}
	d, _ := repo.GetByID(ctx, "d1")
	d.PublicKey.Key[0] = 0xff
	d.Metadata["model"] = "tampered"
	again, _ := repo.GetByID(ctx, "d1")
	if again.PublicKey.Key[0] != 1 || again.Metadata["model"] != "pixel" {
		t.Error("mutating a returned device changed the stored record")
	}
}

func ids(ds []*domain.Device) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}
