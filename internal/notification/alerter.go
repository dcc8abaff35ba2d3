package notification

import (
	"time"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/events"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/strategy"
	"rsi-trend-trader/internal/users"
)

// UserAlerter routes market and trade notifications to each user's own chat
// through the notification manager.
type UserAlerter struct {
	manager  *Manager
	registry *users.Registry
	symbol   string
}

func NewUserAlerter(manager *Manager, registry *users.Registry, symbol string) *UserAlerter {
	return &UserAlerter{manager: manager, registry: registry, symbol: symbol}
}

// TrendAlert delivers a trend change notice to one user.
func (a *UserAlerter) TrendAlert(u *users.User, prev, cur analysis.MarketState, snap *market.Snapshot) {
	a.manager.Send(&Notification{
		Type:      NotifyTrendChange,
		Message:   TrendAlertMessage(prev, cur),
		ChatID:    u.Settings().TelegramChatID,
		Timestamp: time.Now(),
	})
}

// MarketOverview delivers the per-candle summary to one user.
func (a *UserAlerter) MarketOverview(u *users.User, snap *market.Snapshot, state analysis.MarketState) {
	minADX := 0.0
	if len(u.Strategies) > 0 {
		minADX = u.Strategies[0].Config.MinADX
	}
	a.manager.Send(&Notification{
		Type:      NotifyOverview,
		Message:   OverviewMessage(a.symbol, snap, state, minADX),
		ChatID:    u.Settings().TelegramChatID,
		Timestamp: time.Now(),
	})
}

// SubscribeTrades wires trade open/close events to per-user messages. The
// handler works from the event payload alone: the publishing engine still
// holds the strategy lock when subscribers run.
func (a *UserAlerter) SubscribeTrades(bus *events.Bus) {
	handler := func(ev events.Event) {
		userID, ok := ev.Data["user_id"].(int64)
		if !ok {
			return
		}
		u := a.registry.Get(userID)
		if u == nil {
			return
		}

		name, _ := ev.Data["strategy_name"].(string)
		tradeType, _ := ev.Data["trade_type"].(string)
		rec := strategy.TradeRecord{
			Type:          strategy.TradeType(tradeType),
			Timestamp:     ev.Timestamp,
			Price:         floatField(ev, "price"),
			Size:          floatField(ev, "size"),
			FullSize:      floatField(ev, "full_size"),
			RealizedPnL:   floatField(ev, "realized_pnl"),
			CumulativePnL: floatField(ev, "cumulative_pnl"),
		}
		if lev, ok := ev.Data["leverage"].(int); ok {
			rec.Leverage = lev
		}
		if comment, ok := ev.Data["comment"].(string); ok {
			rec.Comment = comment
		}

		notifType := NotifyTradeOpen
		if rec.Type.IsClose() {
			notifType = NotifyTradeClose
		}
		a.manager.Send(&Notification{
			Type:      notifType,
			Message:   TradeMessage(name, rec),
			ChatID:    u.Settings().TelegramChatID,
			PnL:       rec.RealizedPnL,
			Timestamp: time.Now(),
		})
	}

	bus.Subscribe(events.EventTradeOpened, handler)
	bus.Subscribe(events.EventTradeClosed, handler)
}

func floatField(ev events.Event, key string) float64 {
	v, _ := ev.Data[key].(float64)
	return v
}
