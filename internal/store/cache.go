package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/Chardonneaur/VisitorExclusion/internal/rules"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EnabledRulesKey is the redis key holding the cached enabled-rule list.
const EnabledRulesKey = "visitor-exclusion:rules:enabled"

// CachedStore puts a redis read-through cache in front of another Store for
// the enabled-rule read model. Writes go to the inner store and drop the
// cached list. Redis failures are logged and served from the inner store.
type CachedStore struct {
	inner  Store
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedStore wraps inner with a redis cache whose entries live for ttl.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "rule_cache").Logger(),
	}
}

// GetEnabledRules serves the cached list, filling it from the inner store on a miss.
func (c *CachedStore) GetEnabledRules(ctx context.Context) ([]rules.Rule, error) {
	val, err := c.client.Get(ctx, EnabledRulesKey).Bytes()
	switch {
	case err == nil:
		var cached []rules.Rule
		if uerr := json.Unmarshal(val, &cached); uerr == nil {
			return cached, nil
		}
		c.logger.Warn().Msg("cached rule list is unreadable; reloading from store")
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn().Err(err).Msg("redis get failed; reading rules from store")
		return c.inner.GetEnabledRules(ctx)
	}

	result, err := c.inner.GetEnabledRules(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("encode rule list for cache")
		return result, nil
	}
	if err := c.client.Set(ctx, EnabledRulesKey, payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis set failed")
	}
	return result, nil
}

// ListRules reads through to the inner store.
func (c *CachedStore) ListRules(ctx context.Context) ([]rules.Rule, error) {
	return c.inner.ListRules(ctx)
}

// GetRule reads through to the inner store.
func (c *CachedStore) GetRule(ctx context.Context, id int64) (rules.Rule, error) {
	return c.inner.GetRule(ctx, id)
}

// UpsertRule writes to the inner store and invalidates the cache.
func (c *CachedStore) UpsertRule(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	saved, err := c.inner.UpsertRule(ctx, rule)
	if err != nil {
		return rules.Rule{}, err
	}
	c.invalidate(ctx)
	return saved, nil
}

// DeleteRule deletes from the inner store and invalidates the cache.
func (c *CachedStore) DeleteRule(ctx context.Context, id int64) error {
	if err := c.inner.DeleteRule(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// Close closes the redis client and the inner store.
func (c *CachedStore) Close() error {
	return errors.Join(c.client.Close(), c.inner.Close())
}

func (c *CachedStore) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, EnabledRulesKey).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("redis invalidation failed; cached rules expire with their TTL")
	}
}
