package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"cafepos/internal/domain"
)

const (
	kpiKeyPrefix      = "cafepos:kpis:"
	kpiGenerationKey  = "cafepos:kpis-generation"
	sequenceKeyPrefix = "cafepos:seq:"
	sequenceTTL       = 48 * time.Hour
)

// Redis wraps one client shared by the KPI cache and the receipt sequencer.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) GetKPIs(ctx context.Context, asOf string) (*domain.KPISet, bool, error) {
	val, err := c.client.Get(ctx, kpiKeyPrefix+asOf).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var kpis domain.KPISet
	if err := json.Unmarshal([]byte(val), &kpis); err != nil {
		return nil, false, err
	}
	return &kpis, true, nil
}

func (c *Redis) KPIGeneration(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, kpiGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetKPIs stores kpis only while the generation still equals generation,
// using WATCH so a concurrent invalidation aborts the write.
func (c *Redis) SetKPIs(ctx context.Context, kpis domain.KPISet, generation int64, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(kpis)
	if err != nil {
		return err
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, kpiGenerationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, kpiKeyPrefix+kpis.AsOf, payload, ttl)
			return nil
		})
		return err
	}, kpiGenerationKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

func (c *Redis) InvalidateKPIs(ctx context.Context, asOf ...string) error {
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, kpiGenerationKey)
	if len(asOf) > 0 {
		keys := make([]string, 0, len(asOf))
		for _, day := range asOf {
			keys = append(keys, kpiKeyPrefix+day)
		}
		pipe.Del(ctx, keys...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// NextSequence atomically increments the counter for scope. Counters expire
// after two days since receipt scopes are per business day.
func (c *Redis) NextSequence(ctx context.Context, scope string) (int64, error) {
	key := sequenceKeyPrefix + scope
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, sequenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis sequence %s: %w", scope, err)
	}
	return incr.Val(), nil
}
