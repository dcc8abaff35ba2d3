package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rsi-trend-trader/internal/notification"
	"rsi-trend-trader/internal/strategy"
	"rsi-trend-trader/internal/users"
)

const historyPageSize = 5

const welcomeText = "🔒 *Reliable Smart Trading Strategy*\n" +
	"📊 *Market Trend-Based*: Powered by precise trend analysis and RSI for accurate decision-making\n" +
	"📈 *Precise Indicators*: EMA, RSI, ADX — trusted tools for accurate predictions\n" +
	"💼 *Risk-Managed Growth*: Capital protected with strict risk management rules\n" +
	"⚙️ *Real-Time Adjustments*: Automated decisions based on the latest market data\n"

func (b *Bot) cmdStart(ctx context.Context, u *users.User, chatID int64, args []string) string {
	return welcomeText +
		fmt.Sprintf("\nHello %s, I am a smart algo trader bot!\n", u.Username) +
		b.helpText()
}

func (b *Bot) cmdHelp(ctx context.Context, u *users.User, chatID int64, args []string) string {
	return b.helpText()
}

func (b *Bot) helpText() string {
	var sb strings.Builder
	sb.WriteString("Here are the commands you can use:\n")
	for _, name := range []string{
		"/balance", "/positions", "/history", "/strategies",
		"/set_long", "/set_short", "/set_risk", "/set_size",
		"/alerts_on", "/alerts_off", "/overview_on", "/overview_off",
	} {
		sb.WriteString(b.commands[name].usage)
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (b *Bot) cmdBalance(ctx context.Context, u *users.User, chatID int64, args []string) string {
	var sb strings.Builder
	for i, strat := range u.Strategies {
		if i > 0 {
			sb.WriteString("\n")
		}
		strat.WithLock(func() {
			sb.WriteString(notification.BalanceMessage(strat))
		})
	}
	return sb.String()
}

func (b *Bot) cmdPositions(ctx context.Context, u *users.User, chatID int64, args []string) string {
	var sb strings.Builder
	for i, strat := range u.Strategies {
		if i > 0 {
			sb.WriteString("\n")
		}
		strat.WithLock(func() {
			sb.WriteString(notification.PositionsMessage(strat))
		})
	}
	return sb.String()
}

func (b *Bot) cmdHistory(ctx context.Context, u *users.User, chatID int64, args []string) string {
	strategyID := "default"
	page := 0
	if len(args) > 0 {
		strategyID = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil || p < 1 {
			return "Page must be a positive number"
		}
		page = p - 1
	}

	strat := u.Strategy(strategyID)
	if strat == nil {
		return fmt.Sprintf("Unknown strategy `%s`. Try /strategies", strategyID)
	}

	var msg string
	strat.WithLock(func() {
		msg = notification.HistoryMessage(strat, historyPageSize, page*historyPageSize)
	})
	return msg
}

func (b *Bot) cmdStrategies(ctx context.Context, u *users.User, chatID int64, args []string) string {
	var sb strings.Builder
	for i, strat := range u.Strategies {
		if i > 0 {
			sb.WriteString("\n")
		}
		strat.WithLock(func() {
			sb.WriteString(notification.ConfigMessage(strat.Config))
		})
	}
	return sb.String()
}

// parseThreshold parses one RSI threshold argument; "-" keeps the current
// value.
func parseThreshold(arg string) (*int, error) {
	if arg == "-" {
		return nil, nil
	}
	v, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("`%s` is not a number", arg)
	}
	if err := strategy.ValidateThreshold(v); err != nil {
		return nil, err
	}
	return &v, nil
}

func parseBoolArg(arg string) (*bool, error) {
	if arg == "-" {
		return nil, nil
	}
	v, err := strconv.ParseBool(arg)
	if err != nil {
		return nil, fmt.Errorf("`%s` is not true/false", arg)
	}
	return &v, nil
}

func (b *Bot) cmdSetLong(ctx context.Context, u *users.User, chatID int64, args []string) string {
	return b.setThresholds(ctx, u, args, "/set_long", func(cfg *strategy.Config, enter, dca, exit *int) {
		cfg.SetupLongPosition(enter, dca, exit)
	})
}

func (b *Bot) cmdSetShort(ctx context.Context, u *users.User, chatID int64, args []string) string {
	return b.setThresholds(ctx, u, args, "/set_short", func(cfg *strategy.Config, enter, dca, exit *int) {
		cfg.SetupShortPosition(enter, dca, exit)
	})
}

func (b *Bot) setThresholds(ctx context.Context, u *users.User, args []string, usage string,
	apply func(cfg *strategy.Config, enter, dca, exit *int)) string {

	if len(args) != 4 {
		return fmt.Sprintf("Usage: %s <strategy> <enter> <dca> <exit> (use - to keep a value)", usage)
	}
	strat := u.Strategy(args[0])
	if strat == nil {
		return fmt.Sprintf("Unknown strategy `%s`. Try /strategies", args[0])
	}

	enter, err := parseThreshold(args[1])
	if err != nil {
		return err.Error()
	}
	dca, err := parseThreshold(args[2])
	if err != nil {
		return err.Error()
	}
	exit, err := parseThreshold(args[3])
	if err != nil {
		return err.Error()
	}

	var msg string
	strat.WithLock(func() {
		apply(strat.Config, enter, dca, exit)
		msg = notification.ConfigMessage(strat.Config)
	})
	b.persistConfig(ctx, u, strat)
	return msg
}

func (b *Bot) cmdSetRisk(ctx context.Context, u *users.User, chatID int64, args []string) string {
	if len(args) != 5 {
		return "Usage: /set_risk <strategy> <min_adx> <strong_only> <close_on_reverse> <high_volume> (use - to keep a value)"
	}
	strat := u.Strategy(args[0])
	if strat == nil {
		return fmt.Sprintf("Unknown strategy `%s`. Try /strategies", args[0])
	}

	var minADX *float64
	if args[1] != "-" {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil || v < 0 {
			return fmt.Sprintf("`%s` is not a valid ADX threshold", args[1])
		}
		minADX = &v
	}
	strongOnly, err := parseBoolArg(args[2])
	if err != nil {
		return err.Error()
	}
	closeOnReverse, err := parseBoolArg(args[3])
	if err != nil {
		return err.Error()
	}
	highVolume, err := parseBoolArg(args[4])
	if err != nil {
		return err.Error()
	}

	var msg string
	strat.WithLock(func() {
		strat.Config.SetupRiskChecks(minADX, strongOnly, closeOnReverse, highVolume)
		msg = notification.ConfigMessage(strat.Config)
	})
	b.persistConfig(ctx, u, strat)
	return msg
}

func (b *Bot) cmdSetSize(ctx context.Context, u *users.User, chatID int64, args []string) string {
	if len(args) != 3 {
		return "Usage: /set_size <strategy> <size> <leverage> (use - to keep a value)"
	}
	strat := u.Strategy(args[0])
	if strat == nil {
		return fmt.Sprintf("Unknown strategy `%s`. Try /strategies", args[0])
	}

	var size *float64
	if args[1] != "-" {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Sprintf("`%s` is not a number", args[1])
		}
		if err := strategy.ValidatePositionSize(v); err != nil {
			return err.Error()
		}
		size = &v
	}
	var leverage *int
	if args[2] != "-" {
		v, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Sprintf("`%s` is not a number", args[2])
		}
		if err := strategy.ValidateLeverage(v); err != nil {
			return err.Error()
		}
		leverage = &v
	}

	var msg string
	strat.WithLock(func() {
		strat.Config.SetupPositionSettings(size, leverage)
		msg = notification.ConfigMessage(strat.Config)
	})
	b.persistConfig(ctx, u, strat)
	return msg
}

func (b *Bot) toggleSetting(name string, enabled bool) func(context.Context, *users.User, int64, []string) string {
	return func(ctx context.Context, u *users.User, chatID int64, args []string) string {
		settings := u.UpdateSettings(func(s *users.Settings) {
			switch name {
			case "alerts_enabled":
				s.AlertsEnabled = enabled
			case "market_overview_enabled":
				s.MarketOverviewEnabled = enabled
			}
			if s.TelegramChatID == 0 {
				s.TelegramChatID = chatID
			}
		})

		if b.store != nil {
			if err := b.store.SaveUserSettings(ctx, u.ID, settings); err != nil {
				b.log.Error("Failed to persist settings", "user_id", u.ID, "error", err)
			}
		}
		return fmt.Sprintf("%s is set to %t.", name, enabled)
	}
}

func (b *Bot) persistConfig(ctx context.Context, u *users.User, strat *strategy.TradeStrategy) {
	if b.store == nil {
		return
	}
	if err := b.store.SaveStrategyConfig(ctx, u.ID, strat.ID, strat.Config); err != nil {
		b.log.Error("Failed to persist strategy config",
			"user_id", u.ID, "strategy_id", strat.ID, "error", err)
	}
}
