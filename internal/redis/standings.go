// Package redis caches computed event standings so the HTTP layer does not
// re-rank every stored game on each request.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gamechanger/internal/config"
	"github.com/gamechanger/internal/ranking"
)

// StandingsCache provides Redis-based caching of event standings. Per event
// and mode it keeps the full table as JSON plus a sorted set of player totals
// for cheap top-N reads.
type StandingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewStandingsCache creates a new Redis standings cache
func NewStandingsCache(cfg *config.RedisConfig, ttl time.Duration, logger *slog.Logger) (*StandingsCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &StandingsCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *StandingsCache) Close() error {
	return c.client.Close()
}

// tableKey returns the Redis key for the cached standings table
func (c *StandingsCache) tableKey(event string, mode ranking.Mode) string {
	return fmt.Sprintf("standings:%s:%s:table", event, mode)
}

// totalsKey returns the Redis key for the player totals sorted set
func (c *StandingsCache) totalsKey(event string, mode ranking.Mode) string {
	return fmt.Sprintf("standings:%s:%s:totals", event, mode)
}

// Rebuild replaces the cached standings of one event and mode in a single
// pipeline.
func (c *StandingsCache) Rebuild(ctx context.Context, event string, mode ranking.Mode, standings []ranking.Standing) error {
	data, err := json.Marshal(standings)
	if err != nil {
		return fmt.Errorf("marshaling standings: %w", err)
	}

	tableKey := c.tableKey(event, mode)
	totalsKey := c.totalsKey(event, mode)

	pipe := c.client.Pipeline()
	pipe.Set(ctx, tableKey, data, c.ttl)
	pipe.Del(ctx, totalsKey)
	for _, standing := range standings {
		pipe.ZAdd(ctx, totalsKey, redis.Z{
			Score:  standing.Total,
			Member: standing.Player,
		})
	}
	if c.ttl > 0 {
		pipe.Expire(ctx, totalsKey, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rebuilding standings cache: %w", err)
	}

	c.logger.Debug("standings cache rebuilt", "event", event, "mode", string(mode), "players", len(standings))
	return nil
}

// GetTable returns the cached standings table of an event and mode. The bool
// reports a cache hit; a miss is not an error.
func (c *StandingsCache) GetTable(ctx context.Context, event string, mode ranking.Mode) ([]ranking.Standing, bool, error) {
	data, err := c.client.Get(ctx, c.tableKey(event, mode)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("getting standings table: %w", err)
	}

	var standings []ranking.Standing
	if err := json.Unmarshal(data, &standings); err != nil {
		return nil, false, fmt.Errorf("unmarshaling standings table: %w", err)
	}
	return standings, true, nil
}

// PlayerTotal is one entry of a top-N totals read.
type PlayerTotal struct {
	Rank   int     `json:"rank"`
	Player string  `json:"player"`
	Total  float64 `json:"total"`
}

// TopPlayers returns the n best players of an event and mode from the totals
// sorted set.
func (c *StandingsCache) TopPlayers(ctx context.Context, event string, mode ranking.Mode, n int) ([]PlayerTotal, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.totalsKey(event, mode), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("getting top players: %w", err)
	}

	totals := make([]PlayerTotal, len(results))
	for i, result := range results {
		totals[i] = PlayerTotal{
			Rank:   i + 1,
			Player: result.Member.(string),
			Total:  result.Score,
		}
	}
	return totals, nil
}

// Invalidate drops the cached standings of one event across all modes.
func (c *StandingsCache) Invalidate(ctx context.Context, event string) error {
	pipe := c.client.Pipeline()
	for _, mode := range []ranking.Mode{ranking.ModeDefault, ranking.ModePlaytime, ranking.ModeComplexity} {
		pipe.Del(ctx, c.tableKey(event, mode))
		pipe.Del(ctx, c.totalsKey(event, mode))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("invalidating standings cache: %w", err)
	}
	return nil
}
