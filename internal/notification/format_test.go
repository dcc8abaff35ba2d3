package notification

import (
	"strings"
	"testing"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/strategy"
)

func TestTrendAlertMessageWording(t *testing.T) {
	long := analysis.MarketState{Trend: analysis.TrendLong, Strength: analysis.StrengthStrong}
	longWeak := analysis.MarketState{Trend: analysis.TrendLong, Strength: analysis.StrengthWeak}
	short := analysis.MarketState{Trend: analysis.TrendShort, Strength: analysis.StrengthStrong}

	flipped := TrendAlertMessage(short, long)
	if !strings.Contains(flipped, "Trend changes to `LONG` | `STRONG`") {
		t.Errorf("Expected direction-change wording, got %q", flipped)
	}
	if strings.Contains(flipped, "strength changes") {
		t.Errorf("Direction flip must not use strength wording, got %q", flipped)
	}

	weakened := TrendAlertMessage(long, longWeak)
	if !strings.Contains(weakened, "Trend strength changes to `LONG` | `WEAK`") {
		t.Errorf("Expected strength-change wording, got %q", weakened)
	}
}

func TestFormatPrice(t *testing.T) {
	testCases := []struct {
		price    float64
		expected string
	}{
		{64250, "64,250$"},
		{999, "999$"},
		{1000000, "1,000,000$"},
		{-1500, "-1,500$"},
		{0, "0$"},
	}

	for _, tc := range testCases {
		if got := FormatPrice(tc.price); got != tc.expected {
			t.Errorf("FormatPrice(%.0f): expected %q, got %q", tc.price, tc.expected, got)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	testCases := []struct {
		n        float64
		expected string
	}{
		{100.50, "100.5$"},
		{100.00, "100$"},
		{0.25, "0.25$"},
		{-12.30, "-12.3$"},
	}

	for _, tc := range testCases {
		if got := FormatNumber(tc.n); got != tc.expected {
			t.Errorf("FormatNumber(%.2f): expected %q, got %q", tc.n, tc.expected, got)
		}
	}
}

func TestPositionsMessageEmpty(t *testing.T) {
	strat := strategy.New("s", 1, strategy.DefaultConfig("default"), 1000)
	msg := PositionsMessage(strat)
	if !strings.Contains(msg, "No active positions") {
		t.Errorf("Expected empty-position message, got %q", msg)
	}
}

func TestPositionsMessageShowsMultiplier(t *testing.T) {
	strat := strategy.New("s", 1, strategy.DefaultConfig("default"), 1000)
	strat.Position.Open(strategy.SideLong, 100, 50000, 10)
	strat.Position.Open(strategy.SideLong, 100, 48000, 10)

	msg := PositionsMessage(strat)
	if !strings.Contains(msg, "*Long* x2") {
		t.Errorf("Expected add-on multiplier in message, got %q", msg)
	}
	if !strings.Contains(msg, "49000.00$") {
		t.Errorf("Expected averaged entry price in message, got %q", msg)
	}
}

func TestBalanceMessageMarksLoss(t *testing.T) {
	strat := strategy.New("s", 1, strategy.DefaultConfig("default"), 1000)
	strat.Stats.CumulativePnL = -42

	msg := BalanceMessage(strat)
	if !strings.Contains(msg, "❌") {
		t.Errorf("Expected loss marker in balance message, got %q", msg)
	}
}
