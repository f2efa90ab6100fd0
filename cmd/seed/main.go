// seed creates a development user in the configured SQL store and prints an access token for it,
// so the challenge API can be exercised without the primary login system.
// Idempotent: an existing dev user is reused.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"time"

	"pushauth/backend/internal/config"
	"pushauth/backend/internal/db"
	"pushauth/backend/internal/security"
	userdomain "pushauth/backend/internal/user/domain"
	userrepo "pushauth/backend/internal/user/repository"
)

const (
	devUserID    = "dev-user-001"
	devUserEmail = "dev@example.com"
	devPassword  = "password123"
)

func main() {
	email := flag.String("email", devUserEmail, "email of the user to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.JWTPrivateKey == "" {
		log.Fatal("JWT_PRIVATE_KEY is not set; the server would reject a token signed with any other key")
	}
	ctx := context.Background()

	var conn *sql.DB
	var users *userrepo.SQLRepository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		if conn, err = db.Open(ctx, cfg.DatabaseURL); err == nil {
			users = userrepo.NewPostgresRepository(conn)
		}
	case config.StoreSQLite:
		if conn, err = db.OpenSQLite(ctx, cfg.SQLitePath); err == nil {
			users = userrepo.NewSQLiteRepository(conn)
		}
	default:
		log.Fatalf("STORE_DRIVER=%s is not persistent; seed needs postgres or sqlite", cfg.StoreDriver)
	}
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	u, err := users.GetByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if u != nil {
		log.Printf("Seed already applied (%s exists).", *email)
	} else {
		hash, err := security.NewHasher(cfg.BcryptCost).Hash([]byte(devPassword))
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		now := time.Now().UTC()
		u = &userdomain.User{
			ID:           devUserID,
			Email:        *email,
			Name:         "Dev User",
			Status:       userdomain.UserStatusActive,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if *email != devUserEmail {
			u.ID = "dev-" + now.Format("20060102150405")
		}
		if err := users.Create(ctx, u); err != nil {
			log.Fatalf("create user: %v", err)
		}
		log.Printf("Created user %s (%s), password %q", u.ID, u.Email, devPassword)
	}

	priv, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("jwt private key: %v", err)
	}
	pub, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("jwt public key: %v", err)
	}
	tokens := security.NewTokenProvider(priv, pub, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
	token, exp, err := tokens.IssueAccess(u.ID, "seed")
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Printf("user_id=%s\nexpires_at=%s\naccess_token=%s\n", u.ID, exp.Format(time.RFC3339), token)
}
