// Package bot runs the Telegram command interface: user onboarding,
// balance/position queries and strategy tuning.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/strategy"
	"rsi-trend-trader/internal/users"
)

const pollTimeout = 30 * time.Second

// SettingsStore persists what users change through the bot. A nil store
// keeps everything in memory only.
type SettingsStore interface {
	UpsertUser(ctx context.Context, u *users.User) error
	SaveUserSettings(ctx context.Context, userID int64, s users.Settings) error
	SaveStrategyConfig(ctx context.Context, userID int64, strategyID string, cfg *strategy.Config) error
}

// Config holds bot configuration.
type Config struct {
	Token          string
	InitialCapital float64
}

// Bot long-polls the Telegram API and dispatches commands.
type Bot struct {
	cfg      Config
	registry *users.Registry
	store    SettingsStore
	client   *http.Client
	log      *logging.Logger
	commands map[string]commandHandler
	offset   int64
}

type commandHandler struct {
	usage   string
	handler func(ctx context.Context, u *users.User, chatID int64, args []string) string
	// public commands work before the user has registered with /start
	public bool
}

func New(cfg Config, registry *users.Registry, store SettingsStore, log *logging.Logger) *Bot {
	b := &Bot{
		cfg:      cfg,
		registry: registry,
		store:    store,
		client:   &http.Client{Timeout: pollTimeout + 10*time.Second},
		log:      log.WithComponent("bot"),
	}
	b.commands = map[string]commandHandler{
		"/start":        {usage: "/start", handler: b.cmdStart, public: true},
		"/help":         {usage: "/help", handler: b.cmdHelp, public: true},
		"/balance":      {usage: "/balance", handler: b.cmdBalance},
		"/positions":    {usage: "/positions", handler: b.cmdPositions},
		"/history":      {usage: "/history [strategy] [page]", handler: b.cmdHistory},
		"/strategies":   {usage: "/strategies", handler: b.cmdStrategies},
		"/set_long":     {usage: "/set_long <strategy> <enter> <dca> <exit>", handler: b.cmdSetLong},
		"/set_short":    {usage: "/set_short <strategy> <enter> <dca> <exit>", handler: b.cmdSetShort},
		"/set_risk":     {usage: "/set_risk <strategy> <min_adx> <strong_only> <close_on_reverse> <high_volume>", handler: b.cmdSetRisk},
		"/set_size":     {usage: "/set_size <strategy> <size> <leverage>", handler: b.cmdSetSize},
		"/alerts_on":    {usage: "/alerts_on", handler: b.toggleSetting("alerts_enabled", true)},
		"/alerts_off":   {usage: "/alerts_off", handler: b.toggleSetting("alerts_enabled", false)},
		"/overview_on":  {usage: "/overview_on", handler: b.toggleSetting("market_overview_enabled", true)},
		"/overview_off": {usage: "/overview_off", handler: b.toggleSetting("market_overview_enabled", false)},
	}
	return b
}

// telegram update payloads

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	From *struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	} `json:"from"`
	Chat *struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	Text string `json:"text"`
}

// Run long-polls until the context is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	if b.cfg.Token == "" {
		b.log.Info("No bot token configured, bot disabled")
		<-ctx.Done()
		return ctx.Err()
	}

	b.log.Info("Bot started")
	for {
		select {
		case <-ctx.Done():
			b.log.Info("Bot stopped")
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.log.Error("Failed to poll updates", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, upd := range updates {
			b.offset = upd.UpdateID + 1
			b.handleUpdate(ctx, upd)
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/getUpdates?offset=%d&timeout=%d",
		b.cfg.Token, b.offset, int(pollTimeout.Seconds()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("getUpdates returned status %d", resp.StatusCode)
	}

	var payload struct {
		OK     bool     `json:"ok"`
		Result []update `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode updates: %w", err)
	}
	if !payload.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false")
	}
	return payload.Result, nil
}

func (b *Bot) handleUpdate(ctx context.Context, upd update) {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}

	fields := strings.Fields(msg.Text)
	name := strings.ToLower(fields[0])
	// Strip the @botname suffix used in group chats.
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}

	cmd, ok := b.commands[name]
	if !ok {
		b.send(msg.Chat.ID, "Unknown command. Try /help")
		return
	}

	u := b.registry.Get(msg.From.ID)
	if u == nil && !cmd.public {
		b.send(msg.Chat.ID, "Unknown user! Please enter /start first")
		return
	}
	if u == nil {
		u = b.registerUser(ctx, msg.From.ID, msg.From.Username, msg.Chat.ID)
		if u == nil {
			b.send(msg.Chat.ID, "Registration failed, please try again later")
			return
		}
	}

	reply := cmd.handler(ctx, u, msg.Chat.ID, fields[1:])
	if reply != "" {
		b.send(msg.Chat.ID, reply)
	}
}

func (b *Bot) registerUser(ctx context.Context, id int64, username string, chatID int64) *users.User {
	u, err := b.registry.Add(id, username, b.cfg.InitialCapital)
	if err != nil {
		// Already registered by a concurrent update.
		return b.registry.Get(id)
	}
	u.UpdateSettings(func(s *users.Settings) { s.TelegramChatID = chatID })

	if b.store != nil {
		if err := b.store.UpsertUser(ctx, u); err != nil {
			b.log.Error("Failed to persist new user", "user_id", id, "error", err)
		}
		for _, strat := range u.Strategies {
			if err := b.store.SaveStrategyConfig(ctx, id, strat.ID, strat.Config); err != nil {
				b.log.Error("Failed to persist strategy config", "user_id", id, "error", err)
			}
		}
	}

	b.log.Info("User registered", "user_id", id, "username", username)
	return u
}

func (b *Bot) send(chatID int64, text string) {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("Failed to marshal message", "error", err)
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", b.cfg.Token)
	resp, err := b.client.Post(url, "application/json", bytes.NewBuffer(data))
	if err != nil {
		b.log.Error("Failed to send message", "chat_id", chatID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b.log.Error("sendMessage rejected", "chat_id", chatID, "status", resp.StatusCode)
	}
}
