package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/state"
)

// RedisStore persists checkpoints in Redis with a per-key TTL, for
// deployments where conversations must survive process restarts.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStore wraps an existing client. ttl <= 0 selects DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

// DialRedisStore connects to Redis and verifies the connection.
func DialRedisStore(addr, password string, ttl time.Duration, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Connected to checkpoint redis", zap.String("addr", addr))
	return NewRedisStore(client, ttl, logger), nil
}

// Ping verifies the Redis connection is still alive.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) key(conversationID string) string {
	return "checkpoint:" + conversationID
}

func (r *RedisStore) Get(ctx context.Context, conversationID string) (*state.State, error) {
	data, err := r.client.Get(ctx, r.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CheckpointMisses.Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	metrics.CheckpointHits.Inc()

	var st state.State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &st, nil
}

func (r *RedisStore) Put(ctx context.Context, st *state.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, r.key(st.ConversationID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
