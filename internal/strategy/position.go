package strategy

// Side identifies the direction of an exposure.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// SideState is one side's open exposure. EntryPrice is a running average
// weighted equally per open call, not by contributed size.
type SideState struct {
	Opened        bool    `json:"opened"`
	EntryPrice    float64 `json:"entry_price"`
	EntrySize     float64 `json:"entry_size"`      // Sum of base contributions
	EntryFullSize float64 `json:"entry_full_size"` // Sum of leveraged notional
	AddOnCount    int     `json:"add_on_count"`
}

// Position is the per-strategy record of open long/short exposure.
type Position struct {
	Long            SideState `json:"long"`
	Short           SideState `json:"short"`
	CurrentLeverage int       `json:"current_leverage"`
}

// NewPosition returns an empty position record.
func NewPosition() *Position {
	return &Position{}
}

// State returns the record for one side.
func (p *Position) State(side Side) *SideState {
	if side == SideShort {
		return &p.Short
	}
	return &p.Long
}

// Open adds an entry on the given side. The entry price becomes the
// arithmetic mean of all submitted prices so far: (avg*n + price) / (n+1).
func (p *Position) Open(side Side, size, price float64, leverage int) {
	s := p.State(side)
	s.EntryPrice = (s.EntryPrice*float64(s.AddOnCount) + price) / float64(s.AddOnCount+1)
	s.AddOnCount++
	s.EntrySize += size
	s.EntryFullSize += size * float64(leverage)
	s.Opened = true
	p.CurrentLeverage = leverage
}

// CloseAll closes the whole exposure on one side at the given price and
// returns the realized PnL on the leveraged notional. Closing a side with no
// opens returns zero and changes nothing.
func (p *Position) CloseAll(side Side, price float64) float64 {
	s := p.State(side)
	if !s.Opened || s.EntryPrice == 0 {
		return 0
	}

	var pnl float64
	if side == SideLong {
		pnl = (price - s.EntryPrice) * (s.EntryFullSize / s.EntryPrice)
	} else {
		pnl = (s.EntryPrice - price) * (s.EntryFullSize / s.EntryPrice)
	}

	*s = SideState{}
	return pnl
}

// OpenSide reports whether any side is open.
func (p *Position) OpenSide() (Side, bool) {
	if p.Long.Opened {
		return SideLong, true
	}
	if p.Short.Opened {
		return SideShort, true
	}
	return "", false
}
