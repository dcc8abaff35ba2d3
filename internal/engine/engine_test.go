package engine

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/events"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/strategy"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

type recordedOrder struct {
	side     strategy.Side
	quantity float64
	price    float64
	open     bool
}

type fakeOrderPlacer struct {
	orders []recordedOrder
	fail   bool
}

func (f *fakeOrderPlacer) Open(_ context.Context, side strategy.Side, quantity, price float64) error {
	f.orders = append(f.orders, recordedOrder{side, quantity, price, true})
	if f.fail {
		return errors.New("exchange rejected order")
	}
	return nil
}

func (f *fakeOrderPlacer) Close(_ context.Context, side strategy.Side, quantity, price float64) error {
	f.orders = append(f.orders, recordedOrder{side, quantity, price, false})
	if f.fail {
		return errors.New("exchange rejected order")
	}
	return nil
}

type fakeStore struct {
	saved   int
	trades  []strategy.TradeRecord
	failAll bool
}

func (f *fakeStore) SaveStrategyState(context.Context, *strategy.TradeStrategy) error {
	f.saved++
	if f.failAll {
		return errors.New("db down")
	}
	return nil
}

func (f *fakeStore) AppendTrade(_ context.Context, _ int64, _ string, rec strategy.TradeRecord) error {
	f.trades = append(f.trades, rec)
	if f.failAll {
		return errors.New("db down")
	}
	return nil
}

func quietLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "FATAL", Output: "stderr"})
}

func testStrategy() *strategy.TradeStrategy {
	cfg := strategy.DefaultConfig("test")
	cfg.LongEnter = 30
	cfg.LongDCA = 20
	cfg.LongExit = 70
	cfg.ShortEnter = 70
	cfg.ShortDCA = 80
	cfg.ShortExit = 30
	cfg.MinADX = 15
	cfg.StrongTrendOnly = false
	cfg.HighVolumeOnly = false
	cfg.CloseOnTrendReverse = false
	cfg.PositionSize = 100
	cfg.Leverage = 10
	return strategy.New("s1", 42, cfg, 1000)
}

func snapshot(adx, rsi float64) *market.Snapshot {
	return &market.Snapshot{
		Timestamp:     time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Close:         50000,
		Volume:        100,
		AverageVolume: 200,
		ADX:           adx,
		RSIFast:       rsi,
	}
}

func longTrend() analysis.MarketState {
	return analysis.MarketState{Trend: analysis.TrendLong, Strength: analysis.StrengthStrong}
}

func shortTrend() analysis.MarketState {
	return analysis.MarketState{Trend: analysis.TrendShort, Strength: analysis.StrengthStrong}
}

// ============================================================================
// TEST: End-to-end open then close
// ============================================================================

func TestProcessOpensAndClosesLong(t *testing.T) {
	store := &fakeStore{}
	eng := New(0.0004, nil, store, nil, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)

	if len(strat.Stats.TradeLog) != 1 {
		t.Fatalf("Expected 1 trade record, got %d", len(strat.Stats.TradeLog))
	}
	open := strat.Stats.TradeLog[0]
	if open.Type != strategy.TradeOpenLong {
		t.Errorf("Expected Open Long, got %s", open.Type)
	}
	if open.Comment != "RSI < 30" {
		t.Errorf("Expected comment referencing enter threshold, got %q", open.Comment)
	}
	if !floatEquals(strat.Stats.FreeCapital, 900, 1e-9) {
		t.Errorf("Expected free capital 900 after open, got %.2f", strat.Stats.FreeCapital)
	}
	if !floatEquals(strat.Stats.AllocatedCapital, 100, 1e-9) {
		t.Errorf("Expected allocated capital 100 after open, got %.2f", strat.Stats.AllocatedCapital)
	}

	eng.Process(ctx, snapshot(20, 75), ts.Add(time.Hour), 55000, longTrend(), strat)

	if len(strat.Stats.TradeLog) != 2 {
		t.Fatalf("Expected 2 trade records, got %d", len(strat.Stats.TradeLog))
	}
	closeRec := strat.Stats.TradeLog[1]
	if closeRec.Type != strategy.TradeCloseLong {
		t.Errorf("Expected Close Long, got %s", closeRec.Type)
	}
	// (55000-50000) * (1000/50000) = 100.0
	if !floatEquals(closeRec.RealizedPnL, 100.0, 1e-9) {
		t.Errorf("Expected realized PnL 100.0, got %.2f", closeRec.RealizedPnL)
	}
	if !floatEquals(strat.Stats.CumulativePnL, 100.0, 1e-9) {
		t.Errorf("Expected cumulative PnL 100.0, got %.2f", strat.Stats.CumulativePnL)
	}
	if strat.Stats.SuccessfulTrades != 1 || strat.Stats.UnsuccessfulTrades != 0 {
		t.Errorf("Expected 1 win 0 losses, got %d/%d",
			strat.Stats.SuccessfulTrades, strat.Stats.UnsuccessfulTrades)
	}
	if strat.Position.Long.Opened {
		t.Error("Expected long side closed")
	}
	if len(store.trades) != 2 {
		t.Errorf("Expected 2 persisted trades, got %d", len(store.trades))
	}
}

// ============================================================================
// TEST: Capital invariant — close flushes allocation to exactly zero
// ============================================================================

func TestCloseFlushesAllocatedCapital(t *testing.T) {
	eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)
	// DCA add-on doubles the allocation before the close.
	eng.Process(ctx, snapshot(20, 15), ts.Add(time.Hour), 48000, longTrend(), strat)

	if !floatEquals(strat.Stats.AllocatedCapital, 200, 1e-9) {
		t.Fatalf("Expected allocated capital 200 after DCA, got %.2f", strat.Stats.AllocatedCapital)
	}

	eng.Process(ctx, snapshot(20, 75), ts.Add(2*time.Hour), 52000, longTrend(), strat)

	if strat.Stats.AllocatedCapital != 0 {
		t.Errorf("Expected allocated capital exactly 0 after close, got %.10f", strat.Stats.AllocatedCapital)
	}
}

// ============================================================================
// TEST: DCA gating — only the first add-on fires
// ============================================================================

func TestDCAFiresOnlyOnce(t *testing.T) {
	eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)
	if strat.Position.Long.AddOnCount != 1 {
		t.Fatalf("Expected add-on count 1 after open, got %d", strat.Position.Long.AddOnCount)
	}

	eng.Process(ctx, snapshot(20, 15), ts.Add(time.Hour), 48000, longTrend(), strat)
	if strat.Position.Long.AddOnCount != 2 {
		t.Fatalf("Expected add-on count 2 after DCA, got %d", strat.Position.Long.AddOnCount)
	}

	// Oscillator stays below the DCA threshold; no further add-on may fire.
	eng.Process(ctx, snapshot(20, 10), ts.Add(2*time.Hour), 46000, longTrend(), strat)
	if strat.Position.Long.AddOnCount != 2 {
		t.Errorf("Expected no third add-on, got count %d", strat.Position.Long.AddOnCount)
	}
	if len(strat.Stats.TradeLog) != 2 {
		t.Errorf("Expected 2 trade records, got %d", len(strat.Stats.TradeLog))
	}
}

// ============================================================================
// TEST: Gates leave the strategy inert
// ============================================================================

func TestGates(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*strategy.Config)
		snap   *market.Snapshot
		state  analysis.MarketState
	}{
		{
			name:  "ADX at threshold is not enough",
			snap:  snapshot(15, 25),
			state: longTrend(),
		},
		{
			name: "high volume required but volume below average",
			mutate: func(c *strategy.Config) {
				c.HighVolumeOnly = true
			},
			snap:  snapshot(20, 25),
			state: longTrend(),
		},
		{
			name: "strong trend required but trend is weak",
			mutate: func(c *strategy.Config) {
				c.StrongTrendOnly = true
			},
			snap:  snapshot(20, 25),
			state: analysis.MarketState{Trend: analysis.TrendLong, Strength: analysis.StrengthWeak},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
			strat := testStrategy()
			if tc.mutate != nil {
				tc.mutate(strat.Config)
			}

			eng.Process(context.Background(), tc.snap, time.Now(), 50000, tc.state, strat)

			if len(strat.Stats.TradeLog) != 0 {
				t.Errorf("Expected no trades through a failed gate, got %d", len(strat.Stats.TradeLog))
			}
		})
	}
}

// ============================================================================
// TEST: Trend reversal close
// ============================================================================

func TestCloseOnTrendReverse(t *testing.T) {
	eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	strat.Config.CloseOnTrendReverse = true
	ctx := context.Background()
	ts := time.Now()

	// Open a short in a short trend, RSI above short enter.
	eng.Process(ctx, snapshot(20, 75), ts, 50000, shortTrend(), strat)
	if !strat.Position.Short.Opened {
		t.Fatal("Expected short side opened")
	}

	// Trend flips long; neutral RSI keeps every other rule quiet.
	eng.Process(ctx, snapshot(20, 50), ts.Add(time.Hour), 49000, longTrend(), strat)

	if strat.Position.Short.Opened {
		t.Error("Expected short closed on trend reversal")
	}
	last := strat.Stats.TradeLog[len(strat.Stats.TradeLog)-1]
	if last.Type != strategy.TradeCloseShort || last.Comment != "Trend reversal" {
		t.Errorf("Expected Close Short with reversal comment, got %s %q", last.Type, last.Comment)
	}
	// Short opened at 50000, closed at 49000: profit.
	if !floatEquals(last.RealizedPnL, 20.0, 1e-9) {
		t.Errorf("Expected realized PnL 20.0, got %.2f", last.RealizedPnL)
	}
}

func TestNoReversalCloseWhenDisabled(t *testing.T) {
	eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	strat.Config.CloseOnTrendReverse = false
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 75), ts, 50000, shortTrend(), strat)
	eng.Process(ctx, snapshot(20, 50), ts.Add(time.Hour), 49000, longTrend(), strat)

	if !strat.Position.Short.Opened {
		t.Error("Expected short to stay open when reversal close is disabled")
	}
}

// ============================================================================
// TEST: Commission invariant
// ============================================================================

func TestCommissionAccumulation(t *testing.T) {
	const fee = 0.0004
	eng := New(fee, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)                // open, size 100
	eng.Process(ctx, snapshot(20, 15), ts.Add(time.Hour), 48000, longTrend(), strat) // DCA, size 100
	eng.Process(ctx, snapshot(20, 75), ts.Add(2*time.Hour), 52000, longTrend(), strat)

	// Close is charged on the accumulated entry size (200).
	expected := 100*fee + 100*fee + 200*fee
	if !floatEquals(strat.Stats.TotalCommission, expected, 1e-12) {
		t.Errorf("Expected total commission %.6f, got %.6f", expected, strat.Stats.TotalCommission)
	}
}

// ============================================================================
// TEST: Zero PnL counts as a win
// ============================================================================

func TestZeroPnLCountsAsWin(t *testing.T) {
	eng := New(0.0004, nil, &fakeStore{}, nil, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)
	eng.Process(ctx, snapshot(20, 75), ts.Add(time.Hour), 50000, longTrend(), strat)

	if strat.Stats.SuccessfulTrades != 1 {
		t.Errorf("Expected flat close counted as win, got %d wins %d losses",
			strat.Stats.SuccessfulTrades, strat.Stats.UnsuccessfulTrades)
	}
}

// ============================================================================
// TEST: Order and persistence failures do not roll back bookkeeping
// ============================================================================

func TestOrderFailureKeepsBookkeeping(t *testing.T) {
	placer := &fakeOrderPlacer{fail: true}
	store := &fakeStore{failAll: true}
	eng := New(0.0004, placer, store, nil, quietLogger())
	strat := testStrategy()

	eng.Process(context.Background(), snapshot(20, 25), time.Now(), 50000, longTrend(), strat)

	if !strat.Position.Long.Opened {
		t.Error("Expected position state advanced despite order failure")
	}
	if len(strat.Stats.TradeLog) != 1 {
		t.Errorf("Expected trade record appended despite store failure, got %d", len(strat.Stats.TradeLog))
	}
	if len(placer.orders) != 1 || !placer.orders[0].open {
		t.Fatalf("Expected one open order attempt, got %+v", placer.orders)
	}
	// 1000 leveraged notional at 50000 → 0.02
	if !floatEquals(placer.orders[0].quantity, 0.02, 1e-9) {
		t.Errorf("Expected order quantity 0.02, got %.5f", placer.orders[0].quantity)
	}
}

// ============================================================================
// TEST: Events published for trades
// ============================================================================

func TestTradeEventsPublished(t *testing.T) {
	bus := events.NewBus()
	var opened, closed int
	bus.Subscribe(events.EventTradeOpened, func(events.Event) { opened++ })
	bus.Subscribe(events.EventTradeClosed, func(events.Event) { closed++ })

	eng := New(0.0004, nil, &fakeStore{}, bus, quietLogger())
	strat := testStrategy()
	ctx := context.Background()
	ts := time.Now()

	eng.Process(ctx, snapshot(20, 25), ts, 50000, longTrend(), strat)
	eng.Process(ctx, snapshot(20, 75), ts.Add(time.Hour), 55000, longTrend(), strat)

	if opened != 1 || closed != 1 {
		t.Errorf("Expected 1 open and 1 close event, got %d/%d", opened, closed)
	}
}
