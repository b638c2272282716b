package infra

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultWindowGrace é somado ao TTL do bucket apenas para limpeza do Redis.
const DefaultWindowGrace = 60 * time.Second

// RedisWindowStore implementa domain.WindowStore com um sorted set por bucket.
//
// Membros são "<timestampMs>:<nonce>" com score = timestampMs. As quatro
// operações (purga, insert, cardinalidade, expire) vão num único MULTI/EXEC,
// então nenhum outro cliente vê o bucket no meio da atualização.
type RedisWindowStore struct {
	rdb   redis.UniversalClient
	grace time.Duration
	nonce func() string
}

type WindowOption func(*RedisWindowStore)

func WithWindowGrace(d time.Duration) WindowOption {
	return func(s *RedisWindowStore) { s.grace = d }
}

// WithNonce troca o gerador de nonce (testes).
func WithNonce(fn func() string) WindowOption {
	return func(s *RedisWindowStore) { s.nonce = fn }
}

func NewRedisWindowStore(rdb redis.UniversalClient, opts ...WindowOption) *RedisWindowStore {
	s := &RedisWindowStore{
		rdb:   rdb,
		grace: DefaultWindowGrace,
		nonce: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hit implementa domain.WindowStore.
func (s *RedisWindowStore) Hit(ctx context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	nowMs := now.UnixMilli()
	windowStart := nowMs - window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + ":" + s.nonce()

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(nowMs), Member: member})
	card := pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, window+s.grace)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return card.Val(), nil
}
