package store

import (
	"context"
	"fmt"
	"time"

	mydb "github.com/Chardonneaur/VisitorExclusion/internal/db"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewStore creates a new store based on the given store type.
// Supported types: "memory", "postgres". The postgres schema is applied on
// creation.
func NewStore(ctx context.Context, storeType, dbDSN string, logger zerolog.Logger) (Store, error) {
	switch storeType {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		pool, err := mydb.NewPool(ctx, dbDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres pool: %w", err)
		}
		if err := mydb.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to prepare postgres schema: %w", err)
		}
		return NewPostgresStore(pool, logger), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", storeType)
	}
}

// RedisOptions configures the optional rule cache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// WithRedisCache wraps inner in a CachedStore after checking that redis is
// reachable.
func WithRedisCache(ctx context.Context, inner Store, opts RedisOptions, logger zerolog.Logger) (*CachedStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return NewCachedStore(inner, client, opts.TTL, logger), nil
}
