package engine

import (
	"context"
	"time"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/events"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/users"
)

// Alerter delivers per-user market notifications. Implementations decide the
// transport and the formatting.
type Alerter interface {
	TrendAlert(u *users.User, prev, cur analysis.MarketState, snap *market.Snapshot)
	MarketOverview(u *users.User, snap *market.Snapshot, state analysis.MarketState)
}

// PriceSource yields the latest traded price when available. The mark price
// websocket tracker satisfies it; when no live price is known the runner
// falls back to the candle close.
type PriceSource interface {
	Price() (float64, bool)
}

// RunnerConfig controls the polling cadence.
type RunnerConfig struct {
	PollInterval time.Duration
	// FirstMinuteOnly restricts processing to the first minute after an
	// hourly candle closes, matching the indicator refresh cadence.
	FirstMinuteOnly bool
	ErrorBackoff    time.Duration
}

// Runner drives the engine: it polls the indicator feed, classifies the
// trend once per tick, and fans the snapshot out to every registered user's
// strategies in registration order.
type Runner struct {
	cfg      RunnerConfig
	feed     market.Feed
	prices   PriceSource
	engine   *Engine
	registry *users.Registry
	alerter  Alerter
	bus      *events.Bus
	log      *logging.Logger

	lastState     analysis.MarketState
	lastProcessed time.Time
}

func NewRunner(cfg RunnerConfig, feed market.Feed, prices PriceSource, eng *Engine, reg *users.Registry, alerter Alerter, bus *events.Bus, log *logging.Logger) *Runner {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 5 * time.Minute
	}
	return &Runner{
		cfg:      cfg,
		feed:     feed,
		prices:   prices,
		engine:   eng,
		registry: reg,
		alerter:  alerter,
		bus:      bus,
		log:      log.WithComponent("runner"),
	}
}

// Run polls until the context is cancelled. A feed error backs the loop off
// without touching any strategy state.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Runner started", "poll_interval", r.cfg.PollInterval.String())

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("Runner stopped")
			return ctx.Err()
		case <-timer.C:
		}

		wait := r.cfg.PollInterval
		if err := r.Tick(ctx, time.Now()); err != nil {
			r.log.Error("Tick failed, backing off", "backoff", r.cfg.ErrorBackoff.String(), "error", err)
			r.publishError(err)
			wait = r.cfg.ErrorBackoff
		}
		timer.Reset(wait)
	}
}

// Tick runs one full cycle: fetch, dedup, classify, alert, fan out.
func (r *Runner) Tick(ctx context.Context, now time.Time) error {
	if r.cfg.FirstMinuteOnly && now.Minute() != 0 {
		return nil
	}

	snap, err := r.feed.Latest(ctx)
	if err != nil {
		return err
	}

	// The feed republishes the same candle until a new one closes.
	if !snap.Timestamp.After(r.lastProcessed) {
		return nil
	}

	state := analysis.ClassifyTrend(snap)
	directionChanged, strengthChanged := state.ChangeFrom(r.lastState)

	price := snap.Close
	if r.prices != nil {
		if p, ok := r.prices.Price(); ok {
			price = p
		}
	}

	if directionChanged || strengthChanged {
		r.log.Info("Trend changed",
			"trend", string(state.Trend),
			"strength", string(state.Strength),
			"direction_changed", directionChanged)
		if r.bus != nil {
			r.bus.Publish(events.EventTrendChanged, map[string]interface{}{
				"trend":     string(state.Trend),
				"strength":  string(state.Strength),
				"direction": directionChanged,
			})
		}
	}

	prev := r.lastState
	r.registry.ForEach(func(u *users.User) {
		if r.alerter != nil {
			settings := u.Settings()
			if (directionChanged || strengthChanged) && settings.AlertsEnabled {
				r.alerter.TrendAlert(u, prev, state, snap)
			}
			if settings.MarketOverviewEnabled {
				r.alerter.MarketOverview(u, snap, state)
			}
		}
		for _, strat := range u.Strategies {
			r.engine.Process(ctx, snap, snap.Timestamp, price, state, strat)
		}
	})

	r.lastState = state
	r.lastProcessed = snap.Timestamp

	if r.bus != nil {
		r.bus.Publish(events.EventTickDone, map[string]interface{}{
			"timestamp": snap.Timestamp,
			"price":     price,
		})
	}
	return nil
}

func (r *Runner) publishError(err error) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.EventError, map[string]interface{}{"error": err.Error()})
}
