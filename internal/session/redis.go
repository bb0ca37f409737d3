package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "pix:session:"

// redisCommands is the part of the go-redis client the store needs.
type redisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type RedisStore struct {
	client redisCommands
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisStore(redisURL string, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info("session store connected to redis", "addr", opt.Addr)

	return newRedisStore(client, ttl, logger), nil
}

func newRedisStore(client redisCommands, ttl time.Duration, logger *slog.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, logger: logger}
}

func (s *RedisStore) Save(ctx context.Context, key string, info PaymentInfo) error {
	if key == "" {
		return errors.New("session key is required")
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal payment info: %w", err)
	}
	if err := s.client.Set(ctx, redisKeyPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store payment info: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, key string) (*PaymentInfo, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load payment info: %w", err)
	}

	var info PaymentInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		s.logger.Warn("discarding unreadable session entry", "error", err)
		return nil, ErrNotFound
	}
	return &info, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete payment info: %w", err)
	}
	return nil
}

// NewStore picks Redis when redisURL is set and the in-memory store otherwise.
func NewStore(redisURL string, ttl time.Duration, logger *slog.Logger) (Store, error) {
	if redisURL == "" {
		logger.Info("using in-memory session store")
		return NewMemoryStore(ttl), nil
	}
	return NewRedisStore(redisURL, ttl, logger)
}
