package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisRepo struct {
	client *redis.Client
}

func New(ctx context.Context, addr, pass string, db int) (*RedisRepo, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &RedisRepo{
		client: client,
	}, nil
}

// MarkTokenUsed marks an account token as consumed, atomically via SETNX.
// Returns true on first use, false when the token was already consumed.
// Only a digest of the token ever reaches redis.
func (r *RedisRepo) MarkTokenUsed(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	const op = "storage.redis.MarkTokenUsed"

	sum := sha256.Sum256([]byte(token))
	key := fmt.Sprintf("accounts:token:used:%s", hex.EncodeToString(sum[:]))

	success, err := r.client.SetNX(ctx, key, "used", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return success, nil
}

func (r *RedisRepo) Close() {
	r.client.Close()
}
