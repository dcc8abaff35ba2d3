package database

import (
	"testing"

	"rsi-trend-trader/internal/strategy"
)

// ============================================================================
// TEST: Hydration strategy ordering
// ============================================================================

func TestOrderedStrategyIDs(t *testing.T) {
	configs := map[string]*strategy.Config{
		"scalp":   strategy.DefaultConfig("scalp"),
		"extreme": strategy.ExtremeConfig("extreme"),
		"default": strategy.DefaultConfig("default"),
		"alpha":   strategy.DefaultConfig("alpha"),
	}

	want := []string{"default", "extreme", "alpha", "scalp"}
	for i := 0; i < 10; i++ {
		got := orderedStrategyIDs(configs)
		if len(got) != len(want) {
			t.Fatalf("Expected %d ids, got %d", len(want), len(got))
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("Run %d: expected order %v, got %v", i, want, got)
			}
		}
	}
}

func TestOrderedStrategyIDsPartialStandardPair(t *testing.T) {
	configs := map[string]*strategy.Config{
		"extreme": strategy.ExtremeConfig("extreme"),
	}
	got := orderedStrategyIDs(configs)
	if len(got) != 1 || got[0] != "extreme" {
		t.Fatalf("Expected [extreme], got %v", got)
	}
}
