package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "talent-ranker:session:"
	pingTimeout      = 5 * time.Second
)

// RedisConfig points at the Redis server holding sessions.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key-prefix"`
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is not configured")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// RedisStore keeps each session as a Redis list of JSON turns. Every append
// runs in a MULTI/EXEC transaction, so updates to one key are serialised by
// the server.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	maxTurns  int
}

// NewRedisStore wraps a connected client.
func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration, maxTurns int) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	cfg := Config{TTL: ttl, MaxTurns: maxTurns}.withDefaults()
	return &RedisStore{client: client, keyPrefix: keyPrefix, ttl: cfg.TTL, maxTurns: cfg.MaxTurns}
}

func (s *RedisStore) key(id string) string {
	return s.keyPrefix + id
}

// Append pushes turns, trims the list to the newest turns and refreshes the
// expiry.
func (s *RedisStore) Append(ctx context.Context, id string, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, turn := range turns {
		raw, err := json.Marshal(turn)
		if err != nil {
			return fmt.Errorf("marshal turn for session %s: %w", id, err)
		}
		values = append(values, raw)
	}

	key := s.key(id)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append to session %s: %w", id, err)
	}
	return nil
}

// History returns the stored turns, oldest first.
func (s *RedisStore) History(ctx context.Context, id string) ([]Turn, error) {
	raw, err := s.client.LRange(ctx, s.key(id), 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", id, err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, item := range raw {
		var turn Turn
		if err := json.Unmarshal([]byte(item), &turn); err != nil {
			return nil, fmt.Errorf("decode turn of session %s: %w", id, err)
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear deletes the session key.
func (s *RedisStore) Clear(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", id, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
