package market

import (
	"fmt"
	"time"
)

// Snapshot is one completed candle with the indicator values recomputed for
// it. Indicator math happens upstream; this is the boundary record the
// decision engine consumes.
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        float64   `json:"volume"`
	EMAShort      float64   `json:"ema_short"`
	EMAMedium     float64   `json:"ema_medium"`
	EMALong       float64   `json:"ema_long"`
	RSIFast       float64   `json:"rsi_fast"`
	RSISlow       float64   `json:"rsi_slow"`
	ADX           float64   `json:"adx"`
	AverageVolume float64   `json:"average_volume"`
}

// HighVolume reports whether the candle traded above its rolling average.
func (s *Snapshot) HighVolume() bool {
	return s.Volume > s.AverageVolume
}

// Validate rejects malformed snapshots before they reach the engine.
func (s *Snapshot) Validate() error {
	if s.Timestamp.IsZero() {
		return fmt.Errorf("snapshot has no timestamp")
	}
	if s.Close <= 0 {
		return fmt.Errorf("snapshot close price %f is not positive", s.Close)
	}
	if s.Volume < 0 {
		return fmt.Errorf("snapshot volume %f is negative", s.Volume)
	}
	return nil
}
