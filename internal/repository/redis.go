package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dexgate/gateway/internal/config"
	"github.com/redis/go-redis/v9"
)

// RedisClient wraps the shared go-redis connection used by the idempotency
// store (A.8), the audit fan-out list (A.7), and the usage/risk counters
// (A.9).
type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// RedisUsageRepo is the A.9 usage/risk store: per-client daily order count
// and notional volume, used by the pre-trade risk gate to enforce
// MaxDailyOrders/MaxDailyValue ahead of C4.
type RedisUsageRepo struct {
	client *RedisClient
	prefix string
}

func NewRedisUsageRepo(client *RedisClient) *RedisUsageRepo {
	return &RedisUsageRepo{client: client, prefix: "usage"}
}

func (r *RedisUsageRepo) GetDailyUsage(ctx context.Context, clientID string) (int, float64, error) {
	key := r.makeKey(clientID)
	res, err := r.client.Client.HMGet(ctx, key, "orders", "volume").Result()
	if err != nil {
		return 0, 0, err
	}
	orders := 0
	volume := 0.0
	if len(res) == 2 {
		if s, ok := res[0].(string); ok {
			fmt.Sscanf(s, "%d", &orders)
		}
		if s, ok := res[1].(string); ok {
			fmt.Sscanf(s, "%f", &volume)
		}
	}
	return orders, volume, nil
}

func (r *RedisUsageRepo) AddDailyUsage(ctx context.Context, clientID string, orders int, amount float64) error {
	key := r.makeKey(clientID)
	pipe := r.client.Client.Pipeline()
	if orders != 0 {
		pipe.HIncrBy(ctx, key, "orders", int64(orders))
	}
	if amount != 0 {
		pipe.HIncrByFloat(ctx, key, "volume", amount)
	}
	pipe.Expire(ctx, key, 48*time.Hour)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisUsageRepo) makeKey(clientID string) string {
	date := time.Now().UTC().Format("2006-01-02")
	return fmt.Sprintf("%s:%s:%s", r.prefix, clientID, date)
}
