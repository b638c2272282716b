package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cart-guard/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisViolationCounter implementa domain.ViolationCounter.
//
// INCR + EXPIRE na mesma transação: a chave nasce com 1 e o TTL é renovado
// a cada violação, então o contador zera após uma hora sem violações.
type RedisViolationCounter struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

func NewRedisViolationCounter(rdb redis.UniversalClient) *RedisViolationCounter {
	return &RedisViolationCounter{rdb: rdb, ttl: domain.ViolationCountTTL}
}

func (c *RedisViolationCounter) Increment(ctx context.Context, id domain.Identity) (int64, error) {
	key := domain.ViolationCountKey(id)

	pipe := c.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RedisViolationLog grava cada ViolationRecord como JSON em
// violations:<timestampMs>:<clientId>, com retenção de 24h.
type RedisViolationLog struct {
	rdb redis.UniversalClient
	ttl time.Duration
}

type ViolationLogOption func(*RedisViolationLog)

func WithViolationRetention(d time.Duration) ViolationLogOption {
	return func(l *RedisViolationLog) { l.ttl = d }
}

func NewRedisViolationLog(rdb redis.UniversalClient, opts ...ViolationLogOption) *RedisViolationLog {
	l := &RedisViolationLog{rdb: rdb, ttl: domain.ViolationRetention}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisViolationLog) Log(ctx context.Context, rec domain.ViolationRecord) error {
	if l == nil || l.rdb == nil {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode violation record: %w", err)
	}
	return l.rdb.Set(ctx, domain.ViolationKey(rec.ClientIdentity, rec.TimestampMs), b, l.ttl).Err()
}
