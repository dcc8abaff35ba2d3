package database

import (
	"context"

	"rsi-trend-trader/internal/strategy"
)

// Store combines the SQL repository with the Redis state cache: the cache is
// updated on every save so a standby process sees fresh state, while the
// database remains the source of truth.
type Store struct {
	repo  *Repository
	cache *RedisStateCache
}

func NewStore(repo *Repository, cache *RedisStateCache) *Store {
	return &Store{repo: repo, cache: cache}
}

// SaveStrategyState persists position, balance and counters, then refreshes
// the cache. A cache failure never fails the save.
func (s *Store) SaveStrategyState(ctx context.Context, strat *strategy.TradeStrategy) error {
	if err := s.repo.SaveStrategyState(ctx, strat); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Save(ctx, strat); err != nil {
			s.repo.log.Warn("State cache refresh failed",
				"user_id", strat.UserID, "strategy_id", strat.ID, "error", err)
		}
	}
	return nil
}

// AppendTrade writes one trade record to the audit log.
func (s *Store) AppendTrade(ctx context.Context, userID int64, strategyID string, rec strategy.TradeRecord) error {
	return s.repo.AppendTrade(ctx, userID, strategyID, rec)
}
