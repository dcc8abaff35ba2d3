package analysis

import "rsi-trend-trader/internal/market"

// Trend is the directional bias derived from moving-average ordering.
type Trend string

const (
	TrendLong  Trend = "LONG"
	TrendShort Trend = "SHORT"
)

// Strength is the conviction behind the trend.
type Strength string

const (
	StrengthStrong Strength = "STRONG"
	StrengthWeak   Strength = "WEAK"
)

// MarketState is the classified trend for one tick. It is computed once per
// snapshot and passed by value into every strategy decision for that tick.
type MarketState struct {
	Trend    Trend
	Strength Strength
}

// Zero reports whether the state has never been classified.
func (s MarketState) Zero() bool {
	return s.Trend == "" && s.Strength == ""
}

// ClassifyTrend derives trend and strength from the snapshot's three moving
// averages. Short below medium reads as a short trend; the long average
// decides conviction.
func ClassifyTrend(snap *market.Snapshot) MarketState {
	if snap.EMAShort < snap.EMAMedium {
		state := MarketState{Trend: TrendShort, Strength: StrengthWeak}
		if snap.EMAShort < snap.EMALong {
			state.Strength = StrengthStrong
		}
		return state
	}

	state := MarketState{Trend: TrendLong, Strength: StrengthStrong}
	if snap.EMAShort < snap.EMALong {
		state.Strength = StrengthWeak
	}
	return state
}

// ChangeFrom compares against the previous classification. A direction change
// supersedes a strength change for alert wording.
func (s MarketState) ChangeFrom(prev MarketState) (directionChanged, strengthChanged bool) {
	if prev.Zero() {
		return false, false
	}
	return s.Trend != prev.Trend, s.Strength != prev.Strength
}
