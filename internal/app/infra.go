package app

import (
	"context"
	"errors"

	"collab-auth/internal/config"
	"collab-auth/internal/db"
	"collab-auth/internal/logger"
	"collab-auth/internal/redis"
	"collab-auth/internal/session"
	"collab-auth/internal/store"
)

type Infra struct {
	DB    *db.DB
	Redis *redis.Client

	Identities store.IdentityStore
	Sessions   session.Store
}

func setupInfra(ctx context.Context, cfg config.Config) (*Infra, error) {
	infra := &Infra{}

	switch cfg.IdentityBackend {
	case config.BackendPostgres:
		database, err := db.Open(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		infra.DB = database
		infra.Identities = store.NewPostgresStore(database)
		logger.Info("database ready", nil)
	default:
		infra.Identities = store.NewFileStore(cfg.IdentityPath())
		logger.Debug("identity file ready", map[string]any{
			"path": cfg.IdentityPath(),
		})
	}

	switch cfg.SessionBackend {
	case config.BackendRedis:
		client, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			_ = infra.Close()
			return nil, err
		}
		infra.Redis = client
		infra.Sessions = session.NewRedisStore(client.Client)
		logger.Info("redis ready", nil)
	case config.BackendMemory:
		infra.Sessions = session.NewMemoryStore()
	default:
		infra.Sessions = session.NewFileStore(cfg.SessionPath())
		logger.Debug("session file ready", map[string]any{
			"path": cfg.SessionPath(),
		})
	}

	return infra, nil
}

func (i *Infra) Close() error {
	var errs []error
	if i.Redis != nil {
		errs = append(errs, i.Redis.Close())
	}
	if i.DB != nil {
		errs = append(errs, i.DB.Close())
	}
	return errors.Join(errs...)
}
