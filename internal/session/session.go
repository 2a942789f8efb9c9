// Package session keeps short-lived per-candidate conversation history.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/talent-ranker/internal/logger"
	"go.uber.org/zap"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	BackendMemory = "memory"
	BackendRedis  = "redis"

	defaultTTL      = 24 * time.Hour
	defaultMaxTurns = 60
	minMaxTurns     = 2
)

// Turn is one message of a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Store is a conversation store keyed by candidate id. Implementations
// serialise updates to the same id and drop the oldest turns once the bound
// is exceeded.
type Store interface {
	Append(ctx context.Context, id string, turns ...Turn) error
	History(ctx context.Context, id string) ([]Turn, error)
	Clear(ctx context.Context, id string) error
}

// Config selects and tunes a store.
type Config struct {
	Backend       string        `mapstructure:"backend"`
	TTL           time.Duration `mapstructure:"ttl"`
	MaxTurns      int           `mapstructure:"max-turns"`
	SweepInterval time.Duration `mapstructure:"sweep-interval"`
	Redis         RedisConfig   `mapstructure:"redis"`
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = defaultTTL
	}
	if c.MaxTurns <= 0 {
		c.MaxTurns = defaultMaxTurns
	}
	if c.MaxTurns < minMaxTurns {
		c.MaxTurns = minMaxTurns
	}
	return c
}

// Open builds the configured store. The in-memory store is swept in the
// background until ctx is done.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	log = logger.OrNop(log)
	cfg = cfg.withDefaults()

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendMemory:
		m := NewMemory(cfg.TTL, cfg.MaxTurns)
		if cfg.SweepInterval > 0 {
			go m.Run(ctx, cfg.SweepInterval, log)
		}
		log.Debug("session store ready", zap.String("backend", BackendMemory), zap.Duration("ttl", cfg.TTL))
		return m, nil
	case BackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Debug("session store ready",
			zap.String("backend", BackendRedis),
			zap.String("addr", cfg.Redis.Addr),
			zap.Duration("ttl", cfg.TTL),
		)
		return NewRedisStore(client, cfg.Redis.KeyPrefix, cfg.TTL, cfg.MaxTurns), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
