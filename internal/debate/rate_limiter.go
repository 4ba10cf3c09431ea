package debate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig bounds spectator reactions per window.
type RateLimitConfig struct {
	MaxReactions   int
	ReactionWindow time.Duration
}

func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxReactions:   5,
		ReactionWindow: 10 * time.Second,
	}
}

// RateLimiter limits spectator reactions across every instance with a
// fixed window counter in Redis.
type RateLimiter struct {
	rdb    *redis.Client
	config RateLimitConfig
}

func NewRateLimiter(rdb *redis.Client, config RateLimitConfig) *RateLimiter {
	if config.MaxReactions <= 0 || config.ReactionWindow <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{rdb: rdb, config: config}
}

func reactionKey(debateID, spectatorHash string) string {
	return fmt.Sprintf("rate:reaction:%s:%s", debateID, spectatorHash)
}

// AllowReaction counts one reaction and reports whether it fits the window.
func (rl *RateLimiter) AllowReaction(ctx context.Context, debateID, spectatorHash string) (bool, error) {
	key := reactionKey(debateID, spectatorHash)

	var incr *redis.IntCmd
	_, err := rl.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// NX keeps the window anchored at the first reaction.
		pipe.ExpireNX(ctx, key, rl.config.ReactionWindow)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to record reaction: %w", err)
	}
	return incr.Val() <= int64(rl.config.MaxReactions), nil
}
