package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/strategy"
)

const (
	// stateKeyPrefix keys one strategy's cached state.
	// Format: trader:state:{userID}:{strategyID}
	stateKeyPrefix = "trader:state"

	// stateTTL keeps cached state around long enough to cover any realistic
	// restart window.
	stateTTL = 7 * 24 * time.Hour
)

// CachedStrategyState is the hot subset of strategy state kept in Redis so a
// restarted process can resume without a full database read.
type CachedStrategyState struct {
	Long             strategy.SideState `json:"long"`
	Short            strategy.SideState `json:"short"`
	Leverage         int                `json:"leverage"`
	FreeCapital      float64            `json:"free_capital"`
	AllocatedCapital float64            `json:"allocated_capital"`
	CumulativePnL    float64            `json:"cumulative_pnl"`
	SavedAt          time.Time          `json:"saved_at"`
}

// RedisStateCache is a write-through cache for strategy state. When Redis is
// unavailable it degrades to an in-memory map so trading continues.
type RedisStateCache struct {
	client    *redis.Client
	fallback  map[string]*CachedStrategyState
	mu        sync.RWMutex
	available atomic.Bool
	log       *logging.Logger
}

// NewRedisStateCache creates the cache. A nil client means memory-only mode.
func NewRedisStateCache(client *redis.Client, log *logging.Logger) *RedisStateCache {
	c := &RedisStateCache{
		client:   client,
		fallback: make(map[string]*CachedStrategyState),
		log:      log.WithComponent("state-cache"),
	}

	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			c.log.Warn("Redis unavailable at startup, using in-memory cache", "error", err)
			c.available.Store(false)
		} else {
			c.log.Info("Redis connected")
			c.available.Store(true)
		}
	} else {
		c.log.Info("No Redis client configured, in-memory cache only")
		c.available.Store(false)
	}
	return c
}

func (c *RedisStateCache) key(userID int64, strategyID string) string {
	return fmt.Sprintf("%s:%d:%s", stateKeyPrefix, userID, strategyID)
}

// Save writes the strategy's hot state through to Redis. Redis failures are
// absorbed: the in-memory copy is always updated first.
func (c *RedisStateCache) Save(ctx context.Context, strat *strategy.TradeStrategy) error {
	state := &CachedStrategyState{
		Long:             strat.Position.Long,
		Short:            strat.Position.Short,
		Leverage:         strat.Position.CurrentLeverage,
		FreeCapital:      strat.Stats.FreeCapital,
		AllocatedCapital: strat.Stats.AllocatedCapital,
		CumulativePnL:    strat.Stats.CumulativePnL,
		SavedAt:          time.Now(),
	}

	key := c.key(strat.UserID, strat.ID)

	c.mu.Lock()
	c.fallback[key] = state
	c.mu.Unlock()

	if c.client == nil || !c.available.Load() {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal strategy state: %w", err)
	}
	if err := c.client.Set(ctx, key, data, stateTTL).Err(); err != nil {
		c.log.Warn("Redis write failed, in-memory copy kept", "key", key, "error", err)
		c.available.Store(false)
	}
	return nil
}

// Load returns the cached state, or nil when nothing is cached.
func (c *RedisStateCache) Load(ctx context.Context, userID int64, strategyID string) (*CachedStrategyState, error) {
	key := c.key(userID, strategyID)

	if c.client != nil && c.available.Load() {
		data, err := c.client.Get(ctx, key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return c.loadFallback(key), nil
			}
			c.log.Warn("Redis read failed, using in-memory copy", "key", key, "error", err)
			c.available.Store(false)
			return c.loadFallback(key), nil
		}

		var state CachedStrategyState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strategy state: %w", err)
		}

		c.mu.Lock()
		c.fallback[key] = &state
		c.mu.Unlock()
		return &state, nil
	}

	return c.loadFallback(key), nil
}

// Delete drops the cached state, used when a strategy is reset.
func (c *RedisStateCache) Delete(ctx context.Context, userID int64, strategyID string) {
	key := c.key(userID, strategyID)

	c.mu.Lock()
	delete(c.fallback, key)
	c.mu.Unlock()

	if c.client != nil && c.available.Load() {
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn("Redis delete failed", "key", key, "error", err)
			c.available.Store(false)
		}
	}
}

// CheckConnection pings Redis and flips availability back on after an
// outage.
func (c *RedisStateCache) CheckConnection(ctx context.Context) error {
	if c.client == nil {
		return errors.New("no redis client configured")
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.available.Store(false)
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if !c.available.Swap(true) {
		c.log.Info("Redis connection recovered")
	}
	return nil
}

// Available reports whether Redis is currently reachable.
func (c *RedisStateCache) Available() bool {
	return c.available.Load()
}

func (c *RedisStateCache) loadFallback(key string) *CachedStrategyState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if state, ok := c.fallback[key]; ok {
		copied := *state
		return &copied
	}
	return nil
}
