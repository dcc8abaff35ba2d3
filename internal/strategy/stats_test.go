package strategy

import (
	"testing"
	"time"
)

func tradeAt(minute int, tradeType TradeType, price float64) TradeRecord {
	return TradeRecord{
		ID:        NewTradeID(),
		Timestamp: time.Date(2025, 1, 1, 0, minute, 0, 0, time.UTC),
		Type:      tradeType,
		Price:     price,
		Size:      100,
	}
}

// ============================================================================
// TEST: Position reconstruction from the flat trade log
// ============================================================================

func TestPositionsGroupsOpenDcaClose(t *testing.T) {
	stats := NewStats(1000)
	stats.Append(tradeAt(1, TradeOpenLong, 50000))
	stats.Append(tradeAt(2, TradeOpenLong, 48000)) // DCA leg
	stats.Append(tradeAt(3, TradeCloseLong, 52000))
	stats.Append(tradeAt(4, TradeOpenShort, 53000))

	groups := stats.Positions()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	// Newest first: the active short leads.
	if groups[0].Open.Type != TradeOpenShort || !groups[0].Active {
		t.Errorf("Expected leading group to be active short, got %+v", groups[0])
	}
	if groups[0].Close != nil {
		t.Error("Expected active group to have no close record")
	}

	closed := groups[1]
	if closed.Open.Type != TradeOpenLong || closed.Open.Price != 50000 {
		t.Errorf("Expected closed group opened at 50000, got %+v", closed.Open)
	}
	if closed.DCA == nil || closed.DCA.Price != 48000 {
		t.Fatalf("Expected DCA leg at 48000, got %+v", closed.DCA)
	}
	if closed.Close == nil || closed.Close.Price != 52000 {
		t.Fatalf("Expected close at 52000, got %+v", closed.Close)
	}
	if closed.Active {
		t.Error("Expected terminated group to not be active")
	}
}

func TestPositionsSupersededGroupNotActive(t *testing.T) {
	// A third consecutive Open (possible in a truncated persisted log)
	// flushes the superseded group; only the trailing group stays active.
	stats := NewStats(1000)
	stats.Append(tradeAt(1, TradeOpenLong, 50000))
	stats.Append(tradeAt(2, TradeOpenLong, 48000)) // DCA leg
	stats.Append(tradeAt(3, TradeOpenLong, 47000))

	groups := stats.Positions()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if !groups[0].Active || groups[0].Open.Price != 47000 {
		t.Errorf("Expected trailing group active at 47000, got %+v", groups[0])
	}
	if groups[1].Active {
		t.Error("Expected superseded group to not be active")
	}
	if groups[1].DCA == nil || groups[1].DCA.Price != 48000 {
		t.Errorf("Expected superseded group to keep its DCA leg, got %+v", groups[1].DCA)
	}
}

func TestPositionsIdempotent(t *testing.T) {
	stats := NewStats(1000)
	stats.Append(tradeAt(1, TradeOpenShort, 60000))
	stats.Append(tradeAt(2, TradeCloseShort, 58000))
	stats.Append(tradeAt(3, TradeOpenLong, 57000))

	first := stats.Positions()
	second := stats.Positions()

	if len(first) != len(second) {
		t.Fatalf("Expected identical lengths, got %d and %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Open.ID != second[i].Open.ID || first[i].Active != second[i].Active {
			t.Errorf("Group %d differs between invocations: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestPositionsEmptyLog(t *testing.T) {
	stats := NewStats(1000)
	if groups := stats.Positions(); len(groups) != 0 {
		t.Errorf("Expected no groups from an empty log, got %d", len(groups))
	}
}

func TestPositionsCloseWithoutOpen(t *testing.T) {
	// A close whose open fell outside the retained log still terminates
	// cleanly instead of corrupting later groups.
	stats := NewStats(1000)
	stats.Append(tradeAt(1, TradeCloseLong, 52000))
	stats.Append(tradeAt(2, TradeOpenLong, 51000))

	groups := stats.Positions()
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if !groups[0].Active {
		t.Error("Expected trailing open to be active")
	}
}

// ============================================================================
// TEST: Pagination
// ============================================================================

func TestPositionsPage(t *testing.T) {
	stats := NewStats(1000)
	for i := 0; i < 5; i++ {
		stats.Append(tradeAt(i*2, TradeOpenLong, 50000+float64(i)))
		stats.Append(tradeAt(i*2+1, TradeCloseLong, 51000+float64(i)))
	}

	testCases := []struct {
		name          string
		limit, offset int
		expectedLen   int
		expectedFirst float64 // open price of first group in page
	}{
		{"first page", 2, 0, 2, 50004},
		{"second page", 2, 2, 2, 50002},
		{"trailing partial page", 2, 4, 1, 50000},
		{"offset beyond end", 2, 10, 0, 0},
		{"zero limit returns the rest", 0, 1, 4, 50003},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page := stats.PositionsPage(tc.limit, tc.offset)
			if len(page) != tc.expectedLen {
				t.Fatalf("Expected %d groups, got %d", tc.expectedLen, len(page))
			}
			if tc.expectedLen > 0 && page[0].Open.Price != tc.expectedFirst {
				t.Errorf("Expected first open price %.0f, got %.0f", tc.expectedFirst, page[0].Open.Price)
			}
		})
	}
}

// ============================================================================
// TEST: Win rate
// ============================================================================

func TestWinRate(t *testing.T) {
	stats := NewStats(1000)
	if rate := stats.WinRate(); rate != 0 {
		t.Errorf("Expected 0 win rate with no closed trades, got %.2f", rate)
	}

	stats.SuccessfulTrades = 3
	stats.UnsuccessfulTrades = 1
	if rate := stats.WinRate(); !floatEquals(rate, 75.0, 1e-9) {
		t.Errorf("Expected 75.0 win rate, got %.2f", rate)
	}
}
