// Package database provides PostgreSQL persistence for users, strategy
// state and the trade audit log, plus a Redis-backed position state cache.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"rsi-trend-trader/internal/logging"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
	log  *logging.Logger
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB creates a new database connection
func NewDB(cfg Config, log *logging.Logger) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	log = log.WithComponent("database")
	log.Info("Connected to PostgreSQL", "database", cfg.Database)

	return &DB{Pool: pool, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.log.Info("Database connection closed")
	}
}

// RunMigrations executes database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	db.log.Info("Running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR(100) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			alerts_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			market_overview_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			telegram_chat_id BIGINT,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS strategy_config (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy_id VARCHAR(50) NOT NULL,
			name VARCHAR(100) NOT NULL,
			long_enter INT NOT NULL,
			long_dca INT NOT NULL,
			long_exit INT NOT NULL,
			short_enter INT NOT NULL,
			short_dca INT NOT NULL,
			short_exit INT NOT NULL,
			min_adx DECIMAL(10, 4) NOT NULL,
			strong_trend_only BOOLEAN NOT NULL,
			close_on_trend_reverse BOOLEAN NOT NULL,
			high_volume_only BOOLEAN NOT NULL,
			position_size DECIMAL(20, 8) NOT NULL,
			leverage INT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, strategy_id)
		)`,

		`CREATE TABLE IF NOT EXISTS strategy_position_state (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy_id VARCHAR(50) NOT NULL,
			side VARCHAR(5) NOT NULL,
			opened BOOLEAN NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			entry_size DECIMAL(20, 8) NOT NULL,
			entry_full_size DECIMAL(20, 8) NOT NULL,
			add_on_count INT NOT NULL,
			leverage INT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, strategy_id, side)
		)`,

		`CREATE TABLE IF NOT EXISTS strategy_balance (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy_id VARCHAR(50) NOT NULL,
			free_capital DECIMAL(20, 8) NOT NULL,
			allocated_capital DECIMAL(20, 8) NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, strategy_id)
		)`,

		`CREATE TABLE IF NOT EXISTS strategy_stats (
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy_id VARCHAR(50) NOT NULL,
			cumulative_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
			successful_trades INT NOT NULL DEFAULT 0,
			unsuccessful_trades INT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, strategy_id)
		)`,

		`CREATE TABLE IF NOT EXISTS trade_logs (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			strategy_id VARCHAR(50) NOT NULL,
			executed_at TIMESTAMP NOT NULL,
			trade_type VARCHAR(20) NOT NULL,
			price DECIMAL(20, 8) NOT NULL,
			size DECIMAL(20, 8) NOT NULL,
			leverage INT NOT NULL,
			full_size DECIMAL(20, 8) NOT NULL,
			free_capital DECIMAL(20, 8) NOT NULL,
			allocated_capital DECIMAL(20, 8) NOT NULL,
			comment TEXT,
			realized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			cumulative_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_logs_user_strategy ON trade_logs(user_id, strategy_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_logs_executed_at ON trade_logs(executed_at)`,

		`CREATE OR REPLACE FUNCTION update_updated_at_column()
		RETURNS TRIGGER AS $$
		BEGIN
			NEW.updated_at = CURRENT_TIMESTAMP;
			RETURN NEW;
		END;
		$$ language 'plpgsql'`,

		`DROP TRIGGER IF EXISTS update_strategy_config_updated_at ON strategy_config`,
		`CREATE TRIGGER update_strategy_config_updated_at BEFORE UPDATE ON strategy_config
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,

		`DROP TRIGGER IF EXISTS update_strategy_balance_updated_at ON strategy_balance`,
		`CREATE TRIGGER update_strategy_balance_updated_at BEFORE UPDATE ON strategy_balance
		FOR EACH ROW EXECUTE FUNCTION update_updated_at_column()`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	db.log.Info("Database migrations completed")
	return nil
}

// HealthCheck performs a database health check
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
