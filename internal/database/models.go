package database

import "time"

// UserRow mirrors the users table.
type UserRow struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// UserSettingsRow mirrors the user_settings table.
type UserSettingsRow struct {
	UserID                int64     `json:"user_id"`
	AlertsEnabled         bool      `json:"alerts_enabled"`
	MarketOverviewEnabled bool      `json:"market_overview_enabled"`
	TelegramChatID        *int64    `json:"telegram_chat_id,omitempty"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// StrategyConfigRow mirrors the strategy_config table.
type StrategyConfigRow struct {
	UserID              int64   `json:"user_id"`
	StrategyID          string  `json:"strategy_id"`
	Name                string  `json:"name"`
	LongEnter           int     `json:"long_enter"`
	LongDCA             int     `json:"long_dca"`
	LongExit            int     `json:"long_exit"`
	ShortEnter          int     `json:"short_enter"`
	ShortDCA            int     `json:"short_dca"`
	ShortExit           int     `json:"short_exit"`
	MinADX              float64 `json:"min_adx"`
	StrongTrendOnly     bool    `json:"strong_trend_only"`
	CloseOnTrendReverse bool    `json:"close_on_trend_reverse"`
	HighVolumeOnly      bool    `json:"high_volume_only"`
	PositionSize        float64 `json:"position_size"`
	Leverage            int     `json:"leverage"`
}

// PositionStateRow mirrors the strategy_position_state table. One row per
// (user, strategy, side).
type PositionStateRow struct {
	UserID        int64   `json:"user_id"`
	StrategyID    string  `json:"strategy_id"`
	Side          string  `json:"side"`
	Opened        bool    `json:"opened"`
	EntryPrice    float64 `json:"entry_price"`
	EntrySize     float64 `json:"entry_size"`
	EntryFullSize float64 `json:"entry_full_size"`
	AddOnCount    int     `json:"add_on_count"`
	Leverage      int     `json:"leverage"`
}

// BalanceRow mirrors the strategy_balance table.
type BalanceRow struct {
	UserID           int64   `json:"user_id"`
	StrategyID       string  `json:"strategy_id"`
	FreeCapital      float64 `json:"free_capital"`
	AllocatedCapital float64 `json:"allocated_capital"`
}

// StatsRow mirrors the strategy_stats table.
type StatsRow struct {
	UserID             int64   `json:"user_id"`
	StrategyID         string  `json:"strategy_id"`
	CumulativePnL      float64 `json:"cumulative_pnl"`
	TotalCommission    float64 `json:"total_commission"`
	SuccessfulTrades   int     `json:"successful_trades"`
	UnsuccessfulTrades int     `json:"unsuccessful_trades"`
}

// TradeLogRow mirrors the trade_logs table.
type TradeLogRow struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"user_id"`
	StrategyID       string    `json:"strategy_id"`
	ExecutedAt       time.Time `json:"executed_at"`
	TradeType        string    `json:"trade_type"`
	Price            float64   `json:"price"`
	Size             float64   `json:"size"`
	Leverage         int       `json:"leverage"`
	FullSize         float64   `json:"full_size"`
	FreeCapital      float64   `json:"free_capital"`
	AllocatedCapital float64   `json:"allocated_capital"`
	Comment          string    `json:"comment"`
	RealizedPnL      float64   `json:"realized_pnl"`
	CumulativePnL    float64   `json:"cumulative_pnl"`
	Commission       float64   `json:"commission"`
}
