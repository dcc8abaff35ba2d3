package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"rsi-trend-trader/config"
	"rsi-trend-trader/internal/api"
	"rsi-trend-trader/internal/auth"
	"rsi-trend-trader/internal/bot"
	"rsi-trend-trader/internal/database"
	"rsi-trend-trader/internal/engine"
	"rsi-trend-trader/internal/events"
	"rsi-trend-trader/internal/exchange"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/notification"
	"rsi-trend-trader/internal/users"
	"rsi-trend-trader/internal/vault"
)

// serviceAccountID is the vault slot holding the shared exchange keys used
// for order placement. Per-user keys are a later concern.
const serviceAccountID int64 = 0

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(&logging.Config{
		Level:      cfg.LoggingConfig.Level,
		Output:     cfg.LoggingConfig.Output,
		JSONFormat: cfg.LoggingConfig.JSONFormat,
		Component:  "main",
	})
	logging.SetDefault(logger)
	logger.Info("Structured logging initialized")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize event bus
	bus := events.NewBus()

	// Initialize database and persistence
	var store engine.Store = engine.NopStore{}
	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(database.Config{
			Host:     cfg.DatabaseConfig.Host,
			Port:     cfg.DatabaseConfig.Port,
			User:     cfg.DatabaseConfig.User,
			Password: cfg.DatabaseConfig.Password,
			Database: cfg.DatabaseConfig.Database,
			SSLMode:  cfg.DatabaseConfig.SSLMode,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := db.RunMigrations(ctx); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		repo = database.NewRepository(db, logger)

		var redisClient *redis.Client
		if cfg.RedisConfig.Enabled {
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.RedisConfig.Address,
				Password: cfg.RedisConfig.Password,
				DB:       cfg.RedisConfig.DB,
				PoolSize: cfg.RedisConfig.PoolSize,
			})
			defer redisClient.Close()
		}
		stateCache := database.NewRedisStateCache(redisClient, logger)
		store = database.NewStore(repo, stateCache)
		logger.Info("Persistence initialized", "redis", cfg.RedisConfig.Enabled)
	} else {
		logger.Warn("Database disabled, strategy state is in-memory only")
	}

	// Resolve exchange API keys through Vault, falling back to config
	vaultClient, err := vault.NewClient(cfg.VaultConfig)
	if err != nil {
		log.Fatalf("Failed to initialize vault client: %v", err)
	}
	apiKey, secretKey := cfg.ExchangeConfig.APIKey, cfg.ExchangeConfig.SecretKey
	if keys, err := vaultClient.GetAPIKey(ctx, serviceAccountID); err == nil {
		apiKey, secretKey = keys.APIKey, keys.SecretKey
		logger.Info("Exchange keys loaded from vault")
	} else if apiKey != "" {
		// Seed vault (or its local cache) so later lookups resolve
		if err := vaultClient.StoreAPIKey(ctx, serviceAccountID, vault.APIKeyData{
			APIKey:    apiKey,
			SecretKey: secretKey,
			IsTestnet: cfg.ExchangeConfig.TestNet,
		}); err != nil {
			logger.Warn("Failed to store exchange keys in vault", "error", err)
		}
	}

	// Initialize order placement
	var orders engine.OrderPlacer
	if apiKey != "" {
		exchangeClient := exchange.NewClient(apiKey, secretKey, cfg.ExchangeConfig.TestNet)
		orderLog := zerolog.New(os.Stdout).With().Timestamp().Logger()
		orderManager := exchange.NewOrderManager(exchangeClient, cfg.MarketDataConfig.Symbol, cfg.ExchangeConfig.SendOrders, orderLog)
		orders = orderManager
		logger.Info("Order manager initialized",
			"symbol", cfg.MarketDataConfig.Symbol,
			"send_orders", cfg.ExchangeConfig.SendOrders,
			"testnet", cfg.ExchangeConfig.TestNet)
	} else {
		logger.Warn("No exchange API keys configured, running signal-only")
	}

	// Initialize decision engine and user registry
	eng := engine.New(cfg.TradingConfig.TakerFeeRate, orders, store, bus, logger)

	registry := users.NewRegistry()
	if repo != nil {
		if err := repo.HydrateRegistry(ctx, registry, cfg.TradingConfig.InitialCapital); err != nil {
			log.Fatalf("Failed to load users from database: %v", err)
		}
		logger.Info("User registry hydrated", "users", registry.Count())
	}

	// Initialize market data
	feed := market.NewIndicatorFeed(
		cfg.MarketDataConfig.IndicatorURL,
		cfg.MarketDataConfig.Symbol,
		cfg.MarketDataConfig.Interval,
	)
	priceTracker := market.NewPriceTracker(cfg.MarketDataConfig.StreamURL, cfg.MarketDataConfig.Symbol, logger)
	priceTracker.Start()
	defer priceTracker.Stop()

	// Initialize notifications
	var alerter engine.Alerter
	if cfg.NotificationConfig.Enabled {
		manager := notification.NewManager()
		if cfg.NotificationConfig.Telegram.Enabled {
			manager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
				BotToken: cfg.NotificationConfig.Telegram.BotToken,
				ChatID:   cfg.NotificationConfig.Telegram.ChatID,
				Enabled:  true,
			}))
			logger.Info("Telegram notifications enabled")
		}
		if cfg.NotificationConfig.Discord.Enabled {
			manager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
				WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
				Enabled:    true,
			}))
			logger.Info("Discord notifications enabled")
		}
		userAlerter := notification.NewUserAlerter(manager, registry, cfg.MarketDataConfig.Symbol)
		userAlerter.SubscribeTrades(bus)
		alerter = userAlerter
	}

	// Initialize the runner
	runner := engine.NewRunner(engine.RunnerConfig{
		PollInterval:    time.Duration(cfg.MarketDataConfig.PollSeconds) * time.Second,
		FirstMinuteOnly: cfg.MarketDataConfig.FirstMinuteCheck,
		ErrorBackoff:    time.Duration(cfg.TradingConfig.ErrorBackoffSec) * time.Second,
	}, feed, priceTracker, eng, registry, alerter, bus, logger)

	errCh := make(chan error, 3)
	go func() {
		errCh <- runner.Run(ctx)
	}()
	logger.Info("Runner started",
		"symbol", cfg.MarketDataConfig.Symbol,
		"interval", cfg.MarketDataConfig.Interval)

	// Start the Telegram command bot
	if cfg.BotConfig.Enabled && cfg.BotConfig.Token != "" {
		var settings bot.SettingsStore
		if repo != nil {
			settings = repo
		}
		commandBot := bot.New(bot.Config{
			Token:          cfg.BotConfig.Token,
			InitialCapital: cfg.TradingConfig.InitialCapital,
		}, registry, settings, logger)
		go func() {
			errCh <- commandBot.Run(ctx)
		}()
		logger.Info("Telegram command bot started")
	}

	// Start the HTTP API server
	var server *api.Server
	if cfg.ServerConfig.Enabled {
		jwtManager := auth.NewJWTManager(cfg.AuthConfig.JWTSecret, cfg.AuthConfig.AccessTokenDuration)
		server = api.NewServer(api.ServerConfig{
			Host:           cfg.ServerConfig.Host,
			Port:           cfg.ServerConfig.Port,
			ProductionMode: cfg.LoggingConfig.JSONFormat, // JSON logs imply a production deployment
			AdminUser:      cfg.AuthConfig.AdminUser,
			AdminHash:      cfg.AuthConfig.AdminPasswordHash,
		}, registry, jwtManager, logger)
		go func() {
			errCh <- server.Start()
		}()
		logger.Info("API server started", "host", cfg.ServerConfig.Host, "port", cfg.ServerConfig.Port)
	}

	// Wait for shutdown signal or a fatal component error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Component failed", "error", err)
		}
	}
	stop()

	if server != nil {
		timeout := time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("API server shutdown failed", "error", err)
		}
	}

	logger.Info("Shutdown complete")
}
