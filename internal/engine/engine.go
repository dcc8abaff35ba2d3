package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/events"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/strategy"
)

// OrderPlacer submits live orders to the exchange. Implementations may be
// globally disabled; the engine's bookkeeping does not depend on the
// outcome.
type OrderPlacer interface {
	Open(ctx context.Context, side strategy.Side, quantity, price float64) error
	Close(ctx context.Context, side strategy.Side, quantity, price float64) error
}

// Store persists strategy state and trade records. Failures are logged and
// swallowed; in-memory state stays authoritative.
type Store interface {
	SaveStrategyState(ctx context.Context, strat *strategy.TradeStrategy) error
	AppendTrade(ctx context.Context, userID int64, strategyID string, rec strategy.TradeRecord) error
}

// NopStore is the disabled-persistence mode used for local and paper runs.
type NopStore struct{}

func (NopStore) SaveStrategyState(context.Context, *strategy.TradeStrategy) error { return nil }
func (NopStore) AppendTrade(context.Context, int64, string, strategy.TradeRecord) error {
	return nil
}

// Engine applies the entry/exit/DCA rules to one strategy per tick and keeps
// its capital, commission and trade-log bookkeeping.
type Engine struct {
	takerFee float64
	orders   OrderPlacer
	store    Store
	bus      *events.Bus
	log      *logging.Logger
}

// New creates a decision engine. orders may be nil when live order placement
// is disabled entirely.
func New(takerFee float64, orders OrderPlacer, store Store, bus *events.Bus, log *logging.Logger) *Engine {
	if store == nil {
		store = NopStore{}
	}
	return &Engine{
		takerFee: takerFee,
		orders:   orders,
		store:    store,
		bus:      bus,
		log:      log.WithComponent("engine"),
	}
}

// Process runs one decision pass for one strategy. The market state is the
// tick-wide classification passed by value; price is the latest trade price
// used for fills. The strategy mutex is held across decide-mutate-persist.
func (e *Engine) Process(ctx context.Context, snap *market.Snapshot, ts time.Time, price float64, state analysis.MarketState, strat *strategy.TradeStrategy) {
	strat.WithLock(func() {
		e.process(ctx, snap, ts, price, state, strat)
	})
}

func (e *Engine) process(ctx context.Context, snap *market.Snapshot, ts time.Time, price float64, state analysis.MarketState, strat *strategy.TradeStrategy) {
	cfg := strat.Config

	// Momentum and volume gates. A failed gate leaves the strategy inert
	// for this tick.
	if snap.ADX <= cfg.MinADX {
		return
	}
	if cfg.HighVolumeOnly && !snap.HighVolume() {
		return
	}
	if cfg.StrongTrendOnly && state.Strength != analysis.StrengthStrong {
		return
	}

	osc := snap.RSIFast
	pos := strat.Position

	switch state.Trend {
	case analysis.TrendLong:
		if pos.Short.Opened && cfg.CloseOnTrendReverse {
			e.logTrade(ctx, strat, ts, strategy.TradeCloseShort, price, pos.Short.EntrySize, "Trend reversal")
		}
		if pos.Long.Opened && osc > float64(cfg.LongExit) {
			e.logTrade(ctx, strat, ts, strategy.TradeCloseLong, price, pos.Long.EntrySize, fmt.Sprintf("RSI > %d", cfg.LongExit))
		}
		if !pos.Long.Opened && osc < float64(cfg.LongEnter) {
			e.logTrade(ctx, strat, ts, strategy.TradeOpenLong, price, cfg.PositionSize, fmt.Sprintf("RSI < %d", cfg.LongEnter))
		}
		if pos.Long.Opened && pos.Long.AddOnCount == 1 && osc < float64(cfg.LongDCA) {
			e.logTrade(ctx, strat, ts, strategy.TradeOpenLong, price, cfg.PositionSize, fmt.Sprintf("DCA RSI < %d", cfg.LongDCA))
		}

	case analysis.TrendShort:
		if pos.Long.Opened && cfg.CloseOnTrendReverse {
			e.logTrade(ctx, strat, ts, strategy.TradeCloseLong, price, pos.Long.EntrySize, "Trend reversal")
		}
		if pos.Short.Opened && osc < float64(cfg.ShortExit) {
			e.logTrade(ctx, strat, ts, strategy.TradeCloseShort, price, pos.Short.EntrySize, fmt.Sprintf("RSI < %d", cfg.ShortExit))
		}
		if !pos.Short.Opened && osc > float64(cfg.ShortEnter) {
			e.logTrade(ctx, strat, ts, strategy.TradeOpenShort, price, cfg.PositionSize, fmt.Sprintf("RSI > %d", cfg.ShortEnter))
		}
		if pos.Short.Opened && pos.Short.AddOnCount == 1 && osc > float64(cfg.ShortDCA) {
			e.logTrade(ctx, strat, ts, strategy.TradeOpenShort, price, cfg.PositionSize, fmt.Sprintf("DCA RSI > %d", cfg.ShortDCA))
		}
	}
}

// logTrade mutates position and ledger state for one trade event, appends
// the audit record, places the live order and persists. Caller holds the
// strategy mutex.
func (e *Engine) logTrade(ctx context.Context, strat *strategy.TradeStrategy, ts time.Time, tradeType strategy.TradeType, price, size float64, comment string) {
	cfg := strat.Config
	pos := strat.Position
	stats := strat.Stats
	side := tradeType.Side()

	commission := size * e.takerFee
	stats.TotalCommission += commission

	var realizedPnL float64
	var fullSize float64

	if tradeType.IsOpen() {
		fullSize = size * float64(cfg.Leverage)
		pos.Open(side, size, price, cfg.Leverage)
		stats.FreeCapital -= size
		stats.AllocatedCapital += size
		e.placeOrder(ctx, strat, side, fullSize/price, price, true)
	} else {
		fullSize = pos.State(side).EntryFullSize
		quantity := 0.0
		if entry := pos.State(side).EntryPrice; entry > 0 {
			quantity = fullSize / entry
		}
		realizedPnL = round2(pos.CloseAll(side, price))
		stats.FreeCapital += size + realizedPnL
		// Close flushes the whole allocation, not just the closed size.
		stats.AllocatedCapital = 0
		stats.CumulativePnL += realizedPnL
		if realizedPnL < 0 {
			stats.UnsuccessfulTrades++
		} else {
			stats.SuccessfulTrades++
		}
		e.placeOrder(ctx, strat, side, quantity, price, false)
	}

	rec := strategy.TradeRecord{
		ID:               strategy.NewTradeID(),
		Timestamp:        ts,
		Type:             tradeType,
		Price:            price,
		Size:             size,
		Leverage:         cfg.Leverage,
		FullSize:         fullSize,
		FreeCapital:      round2(stats.FreeCapital),
		AllocatedCapital: round2(stats.AllocatedCapital),
		Comment:          comment,
		RealizedPnL:      realizedPnL,
		CumulativePnL:    round2(stats.CumulativePnL),
		Commission:       round2(commission),
	}
	stats.Append(rec)

	e.log.Info("Trade recorded",
		"strategy_id", strat.ID,
		"user_id", strat.UserID,
		"type", string(tradeType),
		"price", price,
		"size", size,
		"comment", comment,
		"pnl", realizedPnL,
	)

	if err := e.store.AppendTrade(ctx, strat.UserID, strat.ID, rec); err != nil {
		e.log.Error("Failed to persist trade record", "strategy_id", strat.ID, "error", err)
	}
	if err := e.store.SaveStrategyState(ctx, strat); err != nil {
		e.log.Error("Failed to persist strategy state", "strategy_id", strat.ID, "error", err)
	}

	if e.bus != nil {
		eventType := events.EventTradeOpened
		if tradeType.IsClose() {
			eventType = events.EventTradeClosed
		}
		e.bus.Publish(eventType, map[string]interface{}{
			"user_id":        strat.UserID,
			"strategy_id":    strat.ID,
			"strategy_name":  cfg.Name,
			"trade_type":     string(tradeType),
			"price":          price,
			"size":           size,
			"full_size":      fullSize,
			"leverage":       cfg.Leverage,
			"comment":        comment,
			"realized_pnl":   realizedPnL,
			"cumulative_pnl": rec.CumulativePnL,
			"free_capital":   rec.FreeCapital,
		})
	}
}

// placeOrder submits the live order when a placer is wired. Failures never
// roll back the bookkeeping: the signal record stays authoritative.
func (e *Engine) placeOrder(ctx context.Context, strat *strategy.TradeStrategy, side strategy.Side, quantity, price float64, open bool) {
	if e.orders == nil {
		return
	}

	quantity = round3(quantity)
	var err error
	if open {
		err = e.orders.Open(ctx, side, quantity, price)
	} else {
		err = e.orders.Close(ctx, side, quantity, price)
	}
	if err != nil {
		e.log.Error("Order placement failed",
			"strategy_id", strat.ID,
			"side", string(side),
			"quantity", quantity,
			"error", err,
		)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
