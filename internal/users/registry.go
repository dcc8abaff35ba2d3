// Package users tracks registered traders and the strategies that run for
// each of them. Registration order is preserved so every tick visits users
// deterministically.
package users

import (
	"fmt"
	"sync"

	"rsi-trend-trader/internal/strategy"
)

// Settings are the per-user notification switches.
type Settings struct {
	AlertsEnabled         bool  `json:"alerts_enabled"`
	MarketOverviewEnabled bool  `json:"market_overview_enabled"`
	TelegramChatID        int64 `json:"telegram_chat_id,omitempty"`
}

// User owns an ordered set of strategies. Strategy bookkeeping is guarded by
// each strategy's own lock; the registry only guards membership. Settings are
// guarded by the user's own lock: the interactive session mutates them while
// the tick loop reads them.
type User struct {
	ID         int64
	Username   string
	Strategies []*strategy.TradeStrategy

	mu       sync.Mutex
	settings Settings
}

// NewUser builds a user hydrated from persistence.
func NewUser(id int64, username string, settings Settings, strategies []*strategy.TradeStrategy) *User {
	return &User{ID: id, Username: username, settings: settings, Strategies: strategies}
}

// Settings returns a copy of the user's settings.
func (u *User) Settings() Settings {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.settings
}

// UpdateSettings applies fn under the user's lock and returns the result.
func (u *User) UpdateSettings(fn func(*Settings)) Settings {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(&u.settings)
	return u.settings
}

// Strategy returns the user's strategy with the given id, or nil.
func (u *User) Strategy(id string) *strategy.TradeStrategy {
	for _, s := range u.Strategies {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// Registry is the in-memory user store.
type Registry struct {
	mu    sync.RWMutex
	users map[int64]*User
	order []int64
}

func NewRegistry() *Registry {
	return &Registry{users: make(map[int64]*User)}
}

// Add registers a user with the standard strategy pair. Each strategy starts
// with its own copy of the initial capital.
func (r *Registry) Add(id int64, username string, initialCapital float64) (*User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; exists {
		return nil, fmt.Errorf("user %d already registered", id)
	}

	u := &User{
		ID:       id,
		Username: username,
		settings: Settings{AlertsEnabled: true, MarketOverviewEnabled: true},
		Strategies: []*strategy.TradeStrategy{
			strategy.New("default", id, strategy.DefaultConfig("default"), initialCapital),
			strategy.New("extreme", id, strategy.ExtremeConfig("extreme"), initialCapital),
		},
	}
	r.users[id] = u
	r.order = append(r.order, id)
	return u, nil
}

// AddExisting registers a user hydrated from persistence, keeping its
// strategies and settings as loaded.
func (r *Registry) AddExisting(u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[u.ID]; exists {
		return fmt.Errorf("user %d already registered", u.ID)
	}
	r.users[u.ID] = u
	r.order = append(r.order, u.ID)
	return nil
}

// Get returns the user by id, or nil when unknown.
func (r *Registry) Get(id int64) *User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[id]
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// ForEach visits users in registration order. The callback runs outside the
// registry lock so it may take strategy locks freely.
func (r *Registry) ForEach(fn func(*User)) {
	r.mu.RLock()
	snapshot := make([]*User, 0, len(r.order))
	for _, id := range r.order {
		snapshot = append(snapshot, r.users[id])
	}
	r.mu.RUnlock()

	for _, u := range snapshot {
		fn(u)
	}
}
