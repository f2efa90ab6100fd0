package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	challengerepo "pushauth/backend/internal/challenge/repository"
	"pushauth/backend/internal/config"
	"pushauth/backend/internal/db"
	devicerepo "pushauth/backend/internal/device/repository"
	"pushauth/backend/internal/health"
	userrepo "pushauth/backend/internal/user/repository"
)

// stores bundles the repositories selected by STORE_DRIVER and CHALLENGE_STORE, plus the connections
// that back them so main can close them and register health checks.
type stores struct {
	users      userrepo.Repository
	devices    devicerepo.Repository
	challenges challengerepo.Repository
	sql        *sql.DB
	redis      *redis.Client
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	if cfg.RedisURL != "" {
		cli, err := db.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		s.redis = cli
	}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		conn, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		s.sql = conn
		s.users = userrepo.NewPostgresRepository(conn)
		s.devices = devicerepo.NewPostgresRepository(conn)
		s.challenges = challengerepo.NewPostgresRepository(conn)
	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		s.sql = conn
		s.users = userrepo.NewSQLiteRepository(conn)
		s.devices = devicerepo.NewSQLiteRepository(conn)
		s.challenges = challengerepo.NewSQLiteRepository(conn)
	default:
		log.Println("store: using in-memory repositories; data is lost on restart")
		s.users = userrepo.NewMemoryRepository()
		s.devices = devicerepo.NewMemoryRepository()
		s.challenges = challengerepo.NewMemoryRepository()
	}

	if cfg.ChallengeStore == config.ChallengeStoreRedis {
		s.challenges = challengerepo.NewRedisRepository(s.redis, "pushauth:")
		log.Println("store: challenges kept in redis")
	}
	return s, nil
}

// register adds a health check for every open connection.
func (s *stores) register(m *health.Monitor) {
	if s.sql != nil {
		m.AddPinger("database", s.sql)
	}
	if s.redis != nil {
		m.Add("redis", func(ctx context.Context) error { return s.redis.Ping(ctx).Err() })
	}
}

func (s *stores) Close() {
	if s.sql != nil {
		if err := s.sql.Close(); err != nil {
			log.Printf("store: close database: %v", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("store: close redis: %v", err)
		}
	}
}
