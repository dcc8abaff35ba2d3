package strategy

import "testing"

func intPtr(v int) *int             { return &v }
func floatPtr(v float64) *float64   { return &v }
func boolPtr(v bool) *bool          { return &v }

// ============================================================================
// TEST: Partial updates leave omitted parameters untouched
// ============================================================================

func TestSetupLongPositionPartialUpdate(t *testing.T) {
	cfg := DefaultConfig("test")
	originalDCA := cfg.LongDCA

	cfg.SetupLongPosition(intPtr(35), nil, intPtr(70))

	if cfg.LongEnter != 35 {
		t.Errorf("Expected long enter 35, got %d", cfg.LongEnter)
	}
	if cfg.LongDCA != originalDCA {
		t.Errorf("Expected long DCA untouched at %d, got %d", originalDCA, cfg.LongDCA)
	}
	if cfg.LongExit != 70 {
		t.Errorf("Expected long exit 70, got %d", cfg.LongExit)
	}
}

func TestSetupShortPositionPartialUpdate(t *testing.T) {
	cfg := DefaultConfig("test")
	originalEnter := cfg.ShortEnter
	originalExit := cfg.ShortExit

	cfg.SetupShortPosition(nil, intPtr(88), nil)

	if cfg.ShortEnter != originalEnter {
		t.Errorf("Expected short enter untouched at %d, got %d", originalEnter, cfg.ShortEnter)
	}
	if cfg.ShortDCA != 88 {
		t.Errorf("Expected short DCA 88, got %d", cfg.ShortDCA)
	}
	if cfg.ShortExit != originalExit {
		t.Errorf("Expected short exit untouched at %d, got %d", originalExit, cfg.ShortExit)
	}
}

func TestSetupRiskChecksPartialUpdate(t *testing.T) {
	cfg := DefaultConfig("test")

	cfg.SetupRiskChecks(floatPtr(25), nil, boolPtr(true), nil)

	if cfg.MinADX != 25 {
		t.Errorf("Expected min ADX 25, got %.1f", cfg.MinADX)
	}
	if cfg.StrongTrendOnly {
		t.Error("Expected strong-trend-only untouched (false)")
	}
	if !cfg.CloseOnTrendReverse {
		t.Error("Expected close-on-trend-reverse set to true")
	}
	if !cfg.HighVolumeOnly {
		t.Error("Expected high-volume-only untouched (true)")
	}

	// Explicit false must win over "leave untouched".
	cfg.SetupRiskChecks(nil, nil, nil, boolPtr(false))
	if cfg.HighVolumeOnly {
		t.Error("Expected high-volume-only disabled")
	}
}

func TestSetupPositionSettingsPartialUpdate(t *testing.T) {
	cfg := DefaultConfig("test")

	cfg.SetupPositionSettings(floatPtr(250), nil)
	if cfg.PositionSize != 250 {
		t.Errorf("Expected position size 250, got %.1f", cfg.PositionSize)
	}
	if cfg.Leverage != 10 {
		t.Errorf("Expected leverage untouched at 10, got %d", cfg.Leverage)
	}

	cfg.SetupPositionSettings(nil, intPtr(20))
	if cfg.Leverage != 20 {
		t.Errorf("Expected leverage 20, got %d", cfg.Leverage)
	}
	if cfg.PositionSize != 250 {
		t.Errorf("Expected position size untouched at 250, got %.1f", cfg.PositionSize)
	}
}

// ============================================================================
// TEST: Input validation boundaries
// ============================================================================

func TestValidateThreshold(t *testing.T) {
	testCases := []struct {
		value   int
		wantErr bool
	}{
		{0, true},
		{1, false},
		{50, false},
		{99, false},
		{100, true},
		{-5, true},
	}

	for _, tc := range testCases {
		err := ValidateThreshold(tc.value)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateThreshold(%d): expected error=%v, got %v", tc.value, tc.wantErr, err)
		}
	}
}

func TestValidatePositionSize(t *testing.T) {
	if err := ValidatePositionSize(0); err == nil {
		t.Error("Expected zero size rejected")
	}
	if err := ValidatePositionSize(-100); err == nil {
		t.Error("Expected negative size rejected")
	}
	if err := ValidatePositionSize(0.5); err != nil {
		t.Errorf("Expected small positive size accepted, got %v", err)
	}
}

func TestValidateLeverage(t *testing.T) {
	if err := ValidateLeverage(0); err == nil {
		t.Error("Expected zero leverage rejected")
	}
	if err := ValidateLeverage(1); err != nil {
		t.Errorf("Expected leverage 1 accepted, got %v", err)
	}
}
