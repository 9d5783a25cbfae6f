// Package stores builds the configured session.Store.
package stores

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/picbot/config"
	"github.com/mohammad-safakhou/picbot/session"
	"github.com/mohammad-safakhou/picbot/session/inmemory"
	redis_session "github.com/mohammad-safakhou/picbot/session/redis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Opened is a store plus the hooks the process wires around it.
type Opened struct {
	Store session.Store
	// Ready reports whether the backend is reachable.
	Ready func(ctx context.Context) error
	// Len is set for backends that can count sessions cheaply.
	Len func() int
	// Run performs background upkeep until ctx is done. May be nil.
	Run func(ctx context.Context)
}

func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Opened, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch session.StoreType(cfg.Sessions.Store) {
	case session.InMemoryStore:
		st := inmemory.NewInMemorySessionStore(inmemory.WithIdleTTL(cfg.Sessions.IdleTTL))
		logger.Info("session store ready", zap.String("store", cfg.Sessions.Store), zap.Duration("idle_ttl", cfg.Sessions.IdleTTL))
		return &Opened{
			Store: st,
			Ready: func(context.Context) error { return nil },
			Len:   st.Len,
			Run: func(ctx context.Context) {
				st.Run(ctx, cfg.Sessions.SweepInterval)
			},
		}, nil
	case session.RedisStore:
		r := cfg.Storage.Redis
		client, err := redis_session.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, err
		}
		st := redis_session.NewRedisSessionStore(client,
			redis_session.WithPrefix(cfg.Sessions.RedisPrefix),
			redis_session.WithIdleTTL(cfg.Sessions.IdleTTL),
		)
		logger.Info("session store ready", zap.String("store", cfg.Sessions.Store), zap.String("addr", r.Addr()), zap.Duration("idle_ttl", cfg.Sessions.IdleTTL))
		return &Opened{
			Store: st,
			Ready: func(ctx context.Context) error { return pingRedis(ctx, client) },
		}, nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Sessions.Store)
	}
}

func pingRedis(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
