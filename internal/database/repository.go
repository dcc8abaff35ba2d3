package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/strategy"
	"rsi-trend-trader/internal/users"
)

// Repository provides raw-SQL access to the trading tables.
type Repository struct {
	db  *DB
	log *logging.Logger
}

func NewRepository(db *DB, log *logging.Logger) *Repository {
	return &Repository{db: db, log: log.WithComponent("repository")}
}

// ============================================================================
// Users and settings
// ============================================================================

// UpsertUser creates or refreshes a user row and its settings.
func (r *Repository) UpsertUser(ctx context.Context, u *users.User) error {
	query := `
		INSERT INTO users (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`
	if _, err := r.db.Pool.Exec(ctx, query, u.ID, u.Username); err != nil {
		return fmt.Errorf("failed to upsert user %d: %w", u.ID, err)
	}

	query = `
		INSERT INTO user_settings (user_id, alerts_enabled, market_overview_enabled, telegram_chat_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			alerts_enabled = EXCLUDED.alerts_enabled,
			market_overview_enabled = EXCLUDED.market_overview_enabled,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			updated_at = CURRENT_TIMESTAMP`
	settings := u.Settings()
	var chatID *int64
	if settings.TelegramChatID != 0 {
		chatID = &settings.TelegramChatID
	}
	if _, err := r.db.Pool.Exec(ctx, query, u.ID,
		settings.AlertsEnabled, settings.MarketOverviewEnabled, chatID); err != nil {
		return fmt.Errorf("failed to upsert settings for user %d: %w", u.ID, err)
	}
	return nil
}

// GetAllUsers returns every user joined with its settings, oldest first so
// hydration preserves the original registration order.
func (r *Repository) GetAllUsers(ctx context.Context) ([]UserRow, map[int64]UserSettingsRow, error) {
	query := `
		SELECT u.id, u.username, u.created_at,
		       COALESCE(s.alerts_enabled, TRUE),
		       COALESCE(s.market_overview_enabled, TRUE),
		       s.telegram_chat_id
		FROM users u
		LEFT JOIN user_settings s ON s.user_id = u.id
		ORDER BY u.created_at, u.id`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var list []UserRow
	settings := make(map[int64]UserSettingsRow)
	for rows.Next() {
		var u UserRow
		var s UserSettingsRow
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt,
			&s.AlertsEnabled, &s.MarketOverviewEnabled, &s.TelegramChatID); err != nil {
			return nil, nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		s.UserID = u.ID
		list = append(list, u)
		settings[u.ID] = s
	}
	return list, settings, rows.Err()
}

// SaveUserSettings persists the notification switches.
func (r *Repository) SaveUserSettings(ctx context.Context, userID int64, s users.Settings) error {
	query := `
		INSERT INTO user_settings (user_id, alerts_enabled, market_overview_enabled, telegram_chat_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			alerts_enabled = EXCLUDED.alerts_enabled,
			market_overview_enabled = EXCLUDED.market_overview_enabled,
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			updated_at = CURRENT_TIMESTAMP`
	var chatID *int64
	if s.TelegramChatID != 0 {
		chatID = &s.TelegramChatID
	}
	if _, err := r.db.Pool.Exec(ctx, query, userID, s.AlertsEnabled, s.MarketOverviewEnabled, chatID); err != nil {
		return fmt.Errorf("failed to save settings for user %d: %w", userID, err)
	}
	return nil
}

// ============================================================================
// Strategy configuration
// ============================================================================

// SaveStrategyConfig upserts one strategy's threshold bundle.
func (r *Repository) SaveStrategyConfig(ctx context.Context, userID int64, strategyID string, cfg *strategy.Config) error {
	query := `
		INSERT INTO strategy_config (
			user_id, strategy_id, name,
			long_enter, long_dca, long_exit,
			short_enter, short_dca, short_exit,
			min_adx, strong_trend_only, close_on_trend_reverse, high_volume_only,
			position_size, leverage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id, strategy_id) DO UPDATE SET
			name = EXCLUDED.name,
			long_enter = EXCLUDED.long_enter,
			long_dca = EXCLUDED.long_dca,
			long_exit = EXCLUDED.long_exit,
			short_enter = EXCLUDED.short_enter,
			short_dca = EXCLUDED.short_dca,
			short_exit = EXCLUDED.short_exit,
			min_adx = EXCLUDED.min_adx,
			strong_trend_only = EXCLUDED.strong_trend_only,
			close_on_trend_reverse = EXCLUDED.close_on_trend_reverse,
			high_volume_only = EXCLUDED.high_volume_only,
			position_size = EXCLUDED.position_size,
			leverage = EXCLUDED.leverage`

	_, err := r.db.Pool.Exec(ctx, query,
		userID, strategyID, cfg.Name,
		cfg.LongEnter, cfg.LongDCA, cfg.LongExit,
		cfg.ShortEnter, cfg.ShortDCA, cfg.ShortExit,
		cfg.MinADX, cfg.StrongTrendOnly, cfg.CloseOnTrendReverse, cfg.HighVolumeOnly,
		cfg.PositionSize, cfg.Leverage)
	if err != nil {
		return fmt.Errorf("failed to save strategy config %d/%s: %w", userID, strategyID, err)
	}
	return nil
}

// GetStrategyConfigs returns all strategy configs for a user keyed by
// strategy id.
func (r *Repository) GetStrategyConfigs(ctx context.Context, userID int64) (map[string]*strategy.Config, error) {
	query := `
		SELECT strategy_id, name,
		       long_enter, long_dca, long_exit,
		       short_enter, short_dca, short_exit,
		       min_adx, strong_trend_only, close_on_trend_reverse, high_volume_only,
		       position_size, leverage
		FROM strategy_config
		WHERE user_id = $1`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategy configs for user %d: %w", userID, err)
	}
	defer rows.Close()

	configs := make(map[string]*strategy.Config)
	for rows.Next() {
		var id string
		cfg := &strategy.Config{}
		if err := rows.Scan(&id, &cfg.Name,
			&cfg.LongEnter, &cfg.LongDCA, &cfg.LongExit,
			&cfg.ShortEnter, &cfg.ShortDCA, &cfg.ShortExit,
			&cfg.MinADX, &cfg.StrongTrendOnly, &cfg.CloseOnTrendReverse, &cfg.HighVolumeOnly,
			&cfg.PositionSize, &cfg.Leverage); err != nil {
			return nil, fmt.Errorf("failed to scan strategy config: %w", err)
		}
		configs[id] = cfg
	}
	return configs, rows.Err()
}

// ============================================================================
// Position, balance and stats state
// ============================================================================

// SaveStrategyState writes position sides, balance and counters in one
// transaction so a crash never leaves them disagreeing.
func (r *Repository) SaveStrategyState(ctx context.Context, strat *strategy.TradeStrategy) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin state transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sideQuery := `
		INSERT INTO strategy_position_state (
			user_id, strategy_id, side, opened,
			entry_price, entry_size, entry_full_size, add_on_count, leverage
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id, strategy_id, side) DO UPDATE SET
			opened = EXCLUDED.opened,
			entry_price = EXCLUDED.entry_price,
			entry_size = EXCLUDED.entry_size,
			entry_full_size = EXCLUDED.entry_full_size,
			add_on_count = EXCLUDED.add_on_count,
			leverage = EXCLUDED.leverage,
			updated_at = CURRENT_TIMESTAMP`

	for _, side := range []strategy.Side{strategy.SideLong, strategy.SideShort} {
		s := strat.Position.State(side)
		if _, err := tx.Exec(ctx, sideQuery,
			strat.UserID, strat.ID, string(side), s.Opened,
			s.EntryPrice, s.EntrySize, s.EntryFullSize, s.AddOnCount,
			strat.Position.CurrentLeverage); err != nil {
			return fmt.Errorf("failed to save %s position state: %w", side, err)
		}
	}

	balanceQuery := `
		INSERT INTO strategy_balance (user_id, strategy_id, free_capital, allocated_capital)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, strategy_id) DO UPDATE SET
			free_capital = EXCLUDED.free_capital,
			allocated_capital = EXCLUDED.allocated_capital,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.Exec(ctx, balanceQuery,
		strat.UserID, strat.ID, strat.Stats.FreeCapital, strat.Stats.AllocatedCapital); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}

	statsQuery := `
		INSERT INTO strategy_stats (
			user_id, strategy_id, cumulative_pnl, total_commission,
			successful_trades, unsuccessful_trades
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, strategy_id) DO UPDATE SET
			cumulative_pnl = EXCLUDED.cumulative_pnl,
			total_commission = EXCLUDED.total_commission,
			successful_trades = EXCLUDED.successful_trades,
			unsuccessful_trades = EXCLUDED.unsuccessful_trades,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.Exec(ctx, statsQuery,
		strat.UserID, strat.ID, strat.Stats.CumulativePnL, strat.Stats.TotalCommission,
		strat.Stats.SuccessfulTrades, strat.Stats.UnsuccessfulTrades); err != nil {
		return fmt.Errorf("failed to save stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit state transaction: %w", err)
	}
	return nil
}

// loadStrategyState fills position, balance and counters into strat. Missing
// rows leave the zero values in place.
func (r *Repository) loadStrategyState(ctx context.Context, strat *strategy.TradeStrategy) error {
	query := `
		SELECT side, opened, entry_price, entry_size, entry_full_size, add_on_count, leverage
		FROM strategy_position_state
		WHERE user_id = $1 AND strategy_id = $2`

	rows, err := r.db.Pool.Query(ctx, query, strat.UserID, strat.ID)
	if err != nil {
		return fmt.Errorf("failed to query position state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var side string
		var s strategy.SideState
		var leverage int
		if err := rows.Scan(&side, &s.Opened, &s.EntryPrice, &s.EntrySize,
			&s.EntryFullSize, &s.AddOnCount, &leverage); err != nil {
			return fmt.Errorf("failed to scan position state: %w", err)
		}
		*strat.Position.State(strategy.Side(side)) = s
		strat.Position.CurrentLeverage = leverage
	}
	if err := rows.Err(); err != nil {
		return err
	}

	balanceQuery := `
		SELECT free_capital, allocated_capital
		FROM strategy_balance
		WHERE user_id = $1 AND strategy_id = $2`
	err = r.db.Pool.QueryRow(ctx, balanceQuery, strat.UserID, strat.ID).
		Scan(&strat.Stats.FreeCapital, &strat.Stats.AllocatedCapital)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("failed to load balance: %w", err)
	}

	statsQuery := `
		SELECT cumulative_pnl, total_commission, successful_trades, unsuccessful_trades
		FROM strategy_stats
		WHERE user_id = $1 AND strategy_id = $2`
	err = r.db.Pool.QueryRow(ctx, statsQuery, strat.UserID, strat.ID).
		Scan(&strat.Stats.CumulativePnL, &strat.Stats.TotalCommission,
			&strat.Stats.SuccessfulTrades, &strat.Stats.UnsuccessfulTrades)
	if err != nil && !isNoRows(err) {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	return nil
}

// ============================================================================
// Trade audit log
// ============================================================================

// AppendTrade inserts one immutable trade record.
func (r *Repository) AppendTrade(ctx context.Context, userID int64, strategyID string, rec strategy.TradeRecord) error {
	query := `
		INSERT INTO trade_logs (
			id, user_id, strategy_id, executed_at, trade_type,
			price, size, leverage, full_size,
			free_capital, allocated_capital, comment,
			realized_pnl, cumulative_pnl, commission
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Pool.Exec(ctx, query,
		rec.ID, userID, strategyID, rec.Timestamp, string(rec.Type),
		rec.Price, rec.Size, rec.Leverage, rec.FullSize,
		rec.FreeCapital, rec.AllocatedCapital, rec.Comment,
		rec.RealizedPnL, rec.CumulativePnL, rec.Commission)
	if err != nil {
		return fmt.Errorf("failed to append trade %s: %w", rec.ID, err)
	}
	return nil
}

// GetTradeHistory returns trade records for a strategy, oldest first.
func (r *Repository) GetTradeHistory(ctx context.Context, userID int64, strategyID string) ([]strategy.TradeRecord, error) {
	query := `
		SELECT id, executed_at, trade_type, price, size, leverage, full_size,
		       free_capital, allocated_capital, comment,
		       realized_pnl, cumulative_pnl, commission
		FROM trade_logs
		WHERE user_id = $1 AND strategy_id = $2
		ORDER BY executed_at, created_at`

	rows, err := r.db.Pool.Query(ctx, query, userID, strategyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trade history: %w", err)
	}
	defer rows.Close()

	var records []strategy.TradeRecord
	for rows.Next() {
		var rec strategy.TradeRecord
		var tradeType string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &tradeType,
			&rec.Price, &rec.Size, &rec.Leverage, &rec.FullSize,
			&rec.FreeCapital, &rec.AllocatedCapital, &rec.Comment,
			&rec.RealizedPnL, &rec.CumulativePnL, &rec.Commission); err != nil {
			return nil, fmt.Errorf("failed to scan trade record: %w", err)
		}
		rec.Type = strategy.TradeType(tradeType)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ============================================================================
// Registry hydration
// ============================================================================

// HydrateRegistry rebuilds the in-memory registry from persistence. A user
// whose rows cannot be loaded consistently is skipped and logged rather than
// registered with partial state.
func (r *Repository) HydrateRegistry(ctx context.Context, reg *users.Registry, initialCapital float64) error {
	userRows, settingsRows, err := r.GetAllUsers(ctx)
	if err != nil {
		return err
	}

	for _, row := range userRows {
		u, err := r.loadUser(ctx, row, settingsRows[row.ID], initialCapital)
		if err != nil {
			r.log.Error("Skipping user with inconsistent persisted state",
				"user_id", row.ID, "error", err)
			continue
		}
		if err := reg.AddExisting(u); err != nil {
			r.log.Error("Failed to register hydrated user", "user_id", row.ID, "error", err)
		}
	}

	r.log.Info("Registry hydrated", "users", reg.Count())
	return nil
}

func (r *Repository) loadUser(ctx context.Context, row UserRow, settings UserSettingsRow, initialCapital float64) (*users.User, error) {
	loaded := users.Settings{
		AlertsEnabled:         settings.AlertsEnabled,
		MarketOverviewEnabled: settings.MarketOverviewEnabled,
	}
	if settings.TelegramChatID != nil {
		loaded.TelegramChatID = *settings.TelegramChatID
	}

	configs, err := r.GetStrategyConfigs(ctx, row.ID)
	if err != nil {
		return nil, err
	}

	// Users created before persistence was introduced get the standard pair.
	if len(configs) == 0 {
		configs = map[string]*strategy.Config{
			"default": strategy.DefaultConfig("default"),
			"extreme": strategy.ExtremeConfig("extreme"),
		}
	}

	var strategies []*strategy.TradeStrategy
	for _, id := range orderedStrategyIDs(configs) {
		strat := strategy.New(id, row.ID, configs[id], initialCapital)
		if err := r.loadStrategyState(ctx, strat); err != nil {
			return nil, fmt.Errorf("strategy %s: %w", id, err)
		}
		history, err := r.GetTradeHistory(ctx, row.ID, id)
		if err != nil {
			return nil, fmt.Errorf("strategy %s history: %w", id, err)
		}
		strat.Stats.TradeLog = history
		strategies = append(strategies, strat)
	}
	return users.NewUser(row.ID, row.Username, loaded, strategies), nil
}

// orderedStrategyIDs keeps the standard pair in its conventional order and
// appends anything custom after it, sorted so fan-out order is stable across
// restarts.
func orderedStrategyIDs(configs map[string]*strategy.Config) []string {
	var ids []string
	for _, known := range []string{"default", "extreme"} {
		if _, ok := configs[known]; ok {
			ids = append(ids, known)
		}
	}
	var custom []string
	for id := range configs {
		if id != "default" && id != "extreme" {
			custom = append(custom, id)
		}
	}
	sort.Strings(custom)
	return append(ids, custom...)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
