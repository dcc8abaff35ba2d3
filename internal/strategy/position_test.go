package strategy

import (
	"math"
	"testing"
)

func floatEquals(a, b, tolerance float64) bool {
	return math.Abs(a-b) <= tolerance
}

// ============================================================================
// TEST: Entry price averaging (equal weight per call, not size-weighted)
// ============================================================================

func TestOpenEntryPriceAveraging(t *testing.T) {
	testCases := []struct {
		name          string
		opens         [][2]float64 // size, price
		expectedPrice float64
	}{
		{
			name:          "single open keeps its price",
			opens:         [][2]float64{{100, 50000}},
			expectedPrice: 50000,
		},
		{
			name:          "two opens average by count despite different sizes",
			opens:         [][2]float64{{100, 50000}, {900, 40000}},
			expectedPrice: 45000,
		},
		{
			name:          "three opens average by count",
			opens:         [][2]float64{{50, 30000}, {500, 60000}, {5, 90000}},
			expectedPrice: 60000,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pos := NewPosition()
			for _, o := range tc.opens {
				pos.Open(SideLong, o[0], o[1], 10)
			}
			if !floatEquals(pos.Long.EntryPrice, tc.expectedPrice, 1e-9) {
				t.Errorf("Expected entry price %.2f, got %.2f", tc.expectedPrice, pos.Long.EntryPrice)
			}
			if pos.Long.AddOnCount != len(tc.opens) {
				t.Errorf("Expected add-on count %d, got %d", len(tc.opens), pos.Long.AddOnCount)
			}
		})
	}
}

func TestOpenAccumulatesSizes(t *testing.T) {
	pos := NewPosition()
	pos.Open(SideShort, 100, 50000, 10)
	pos.Open(SideShort, 200, 48000, 10)

	if !floatEquals(pos.Short.EntrySize, 300, 1e-9) {
		t.Errorf("Expected entry size 300, got %.2f", pos.Short.EntrySize)
	}
	if !floatEquals(pos.Short.EntryFullSize, 3000, 1e-9) {
		t.Errorf("Expected leveraged size 3000, got %.2f", pos.Short.EntryFullSize)
	}
	if !pos.Short.Opened {
		t.Error("Expected short side to be opened")
	}
	if pos.CurrentLeverage != 10 {
		t.Errorf("Expected current leverage 10, got %d", pos.CurrentLeverage)
	}
}

// ============================================================================
// TEST: CloseAll PnL and boundary cases
// ============================================================================

func TestCloseAllRoundTrip(t *testing.T) {
	pos := NewPosition()
	pos.Open(SideLong, 100, 50000, 10)

	pnl := pos.CloseAll(SideLong, 55000)

	// (55000-50000) * (1000/50000) = 100.0
	if !floatEquals(pnl, 100.0, 1e-9) {
		t.Errorf("Expected realized PnL 100.0, got %.4f", pnl)
	}
	if pos.Long.Opened {
		t.Error("Expected long side closed")
	}
	if pos.Long.EntryPrice != 0 || pos.Long.EntrySize != 0 || pos.Long.EntryFullSize != 0 {
		t.Errorf("Expected long side zeroed, got %+v", pos.Long)
	}
	if pos.Long.AddOnCount != 0 {
		t.Errorf("Expected add-on count reset, got %d", pos.Long.AddOnCount)
	}
}

func TestCloseAllShortSignReversed(t *testing.T) {
	pos := NewPosition()
	pos.Open(SideShort, 100, 50000, 10)

	pnl := pos.CloseAll(SideShort, 55000)

	// Short loses when price rises: (50000-55000) * (1000/50000) = -100.0
	if !floatEquals(pnl, -100.0, 1e-9) {
		t.Errorf("Expected realized PnL -100.0, got %.4f", pnl)
	}
}

func TestCloseAllWithNoOpensReturnsZero(t *testing.T) {
	pos := NewPosition()

	if pnl := pos.CloseAll(SideLong, 50000); pnl != 0 {
		t.Errorf("Expected zero PnL on empty close, got %.4f", pnl)
	}
	if pnl := pos.CloseAll(SideShort, 50000); pnl != 0 {
		t.Errorf("Expected zero PnL on empty short close, got %.4f", pnl)
	}
}

func TestCloseAllOnlyAffectsOneSide(t *testing.T) {
	pos := NewPosition()
	pos.Open(SideLong, 100, 50000, 10)
	pos.Open(SideShort, 100, 52000, 10)

	pos.CloseAll(SideLong, 51000)

	if !pos.Short.Opened {
		t.Error("Expected short side to remain open after closing long")
	}
	if !floatEquals(pos.Short.EntryPrice, 52000, 1e-9) {
		t.Errorf("Expected short entry price untouched, got %.2f", pos.Short.EntryPrice)
	}
}

func TestOpenSide(t *testing.T) {
	pos := NewPosition()
	if _, open := pos.OpenSide(); open {
		t.Error("Expected no open side on a fresh position")
	}

	pos.Open(SideShort, 100, 50000, 5)
	side, open := pos.OpenSide()
	if !open || side != SideShort {
		t.Errorf("Expected open short side, got %s open=%v", side, open)
	}
}
