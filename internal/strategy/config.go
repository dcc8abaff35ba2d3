package strategy

import "fmt"

// Config is one strategy's trade-threshold bundle. Oscillator thresholds are
// RSI levels in [1,99]. Entry/exit thresholds are deliberately not required
// to be ordered relative to each other.
type Config struct {
	Name                string  `json:"name"`
	LongEnter           int     `json:"long_enter"`
	LongDCA             int     `json:"long_dca"`
	LongExit            int     `json:"long_exit"`
	ShortEnter          int     `json:"short_enter"`
	ShortDCA            int     `json:"short_dca"`
	ShortExit           int     `json:"short_exit"`
	MinADX              float64 `json:"min_adx"`
	StrongTrendOnly     bool    `json:"strong_trend_only"`
	CloseOnTrendReverse bool    `json:"close_on_trend_reverse"`
	HighVolumeOnly      bool    `json:"high_volume_only"`
	PositionSize        float64 `json:"position_size"`
	Leverage            int     `json:"leverage"`
}

// DefaultConfig returns the baseline strategy parameters.
func DefaultConfig(name string) *Config {
	return &Config{
		Name:                name,
		LongEnter:           80,
		LongDCA:             90,
		LongExit:            79,
		ShortEnter:          30,
		ShortDCA:            20,
		ShortExit:           31,
		MinADX:              15,
		StrongTrendOnly:     false,
		CloseOnTrendReverse: false,
		HighVolumeOnly:      true,
		PositionSize:        100.0,
		Leverage:            10,
	}
}

// ExtremeConfig returns the mean-reversion variant that enters on oscillator
// extremes.
func ExtremeConfig(name string) *Config {
	return &Config{
		Name:                name,
		LongEnter:           32,
		LongDCA:             23,
		LongExit:            68,
		ShortEnter:          82,
		ShortDCA:            90,
		ShortExit:           55,
		MinADX:              15,
		StrongTrendOnly:     false,
		CloseOnTrendReverse: false,
		HighVolumeOnly:      true,
		PositionSize:        100.0,
		Leverage:            10,
	}
}

// SetupRiskChecks applies a partial update of the risk gates. Nil parameters
// leave the current values untouched.
func (c *Config) SetupRiskChecks(minADX *float64, strongTrendOnly, closeOnTrendReverse, highVolumeOnly *bool) {
	if minADX != nil {
		c.MinADX = *minADX
	}
	if strongTrendOnly != nil {
		c.StrongTrendOnly = *strongTrendOnly
	}
	if closeOnTrendReverse != nil {
		c.CloseOnTrendReverse = *closeOnTrendReverse
	}
	if highVolumeOnly != nil {
		c.HighVolumeOnly = *highVolumeOnly
	}
}

// SetupLongPosition applies a partial update of the long-side thresholds.
func (c *Config) SetupLongPosition(enter, dca, exit *int) {
	if enter != nil {
		c.LongEnter = *enter
	}
	if dca != nil {
		c.LongDCA = *dca
	}
	if exit != nil {
		c.LongExit = *exit
	}
}

// SetupShortPosition applies a partial update of the short-side thresholds.
func (c *Config) SetupShortPosition(enter, dca, exit *int) {
	if enter != nil {
		c.ShortEnter = *enter
	}
	if dca != nil {
		c.ShortDCA = *dca
	}
	if exit != nil {
		c.ShortExit = *exit
	}
}

// SetupPositionSettings applies a partial update of size and leverage.
func (c *Config) SetupPositionSettings(size *float64, leverage *int) {
	if size != nil {
		c.PositionSize = *size
	}
	if leverage != nil {
		c.Leverage = *leverage
	}
}

// ValidateThreshold checks an oscillator threshold coming from user input.
func ValidateThreshold(value int) error {
	if value < 1 || value > 99 {
		return fmt.Errorf("oscillator threshold %d is out of range [1,99]", value)
	}
	return nil
}

// ValidatePositionSize checks a position size coming from user input.
func ValidatePositionSize(size float64) error {
	if size <= 0 {
		return fmt.Errorf("position size %.2f must be positive", size)
	}
	return nil
}

// ValidateLeverage checks a leverage factor coming from user input.
func ValidateLeverage(leverage int) error {
	if leverage < 1 {
		return fmt.Errorf("leverage %d must be at least 1", leverage)
	}
	return nil
}
