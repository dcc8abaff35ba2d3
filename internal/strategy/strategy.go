package strategy

import "sync"

// TradeStrategy binds one config, one position record and one stats ledger
// under a stable identifier. The mutex covers the whole
// read-decide-mutate-persist section: the tick engine and the interactive
// session touch the same objects.
type TradeStrategy struct {
	ID     string
	UserID int64

	mu       sync.Mutex
	Config   *Config
	Position *Position
	Stats    *Stats
}

// New creates a strategy with the given config and a fresh position/ledger.
func New(id string, userID int64, cfg *Config, initialCapital float64) *TradeStrategy {
	return &TradeStrategy{
		ID:       id,
		UserID:   userID,
		Config:   cfg,
		Position: NewPosition(),
		Stats:    NewStats(initialCapital),
	}
}

// WithLock runs fn while holding the strategy mutex.
func (s *TradeStrategy) WithLock(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
