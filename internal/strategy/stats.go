package strategy

import (
	"time"

	"github.com/google/uuid"
)

// TradeType labels one trade-log record.
type TradeType string

const (
	TradeOpenLong   TradeType = "Open Long"
	TradeOpenShort  TradeType = "Open Short"
	TradeCloseLong  TradeType = "Close Long"
	TradeCloseShort TradeType = "Close Short"
)

// IsOpen reports whether the record is an entry.
func (t TradeType) IsOpen() bool {
	return t == TradeOpenLong || t == TradeOpenShort
}

// IsClose reports whether the record is an exit.
func (t TradeType) IsClose() bool {
	return t == TradeCloseLong || t == TradeCloseShort
}

// Side returns the direction the record belongs to.
func (t TradeType) Side() Side {
	if t == TradeOpenShort || t == TradeCloseShort {
		return SideShort
	}
	return SideLong
}

// TradeRecord is one immutable trade-log entry.
type TradeRecord struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	Type             TradeType `json:"trade_type"`
	Price            float64   `json:"price"`
	Size             float64   `json:"size"`
	Leverage         int       `json:"leverage"`
	FullSize         float64   `json:"full_size"`
	FreeCapital      float64   `json:"free_capital"`
	AllocatedCapital float64   `json:"allocated_capital"`
	Comment          string    `json:"comment"`
	RealizedPnL      float64   `json:"realized_pnl"`
	CumulativePnL    float64   `json:"cumulative_pnl"`
	Commission       float64   `json:"commission"`
}

// NewTradeID returns a fresh trade-record identifier.
func NewTradeID() string {
	return uuid.New().String()
}

// Stats is the per-strategy ledger of capital, realized PnL, commission,
// win/loss counters and the append-only trade log.
type Stats struct {
	FreeCapital        float64       `json:"free_capital"`
	AllocatedCapital   float64       `json:"allocated_capital"`
	CumulativePnL      float64       `json:"cumulative_pnl"`
	TotalCommission    float64       `json:"total_commission"`
	SuccessfulTrades   int           `json:"successful_trades"`
	UnsuccessfulTrades int           `json:"unsuccessful_trades"`
	TradeLog           []TradeRecord `json:"trade_log"`
}

// NewStats returns a ledger seeded with the starting capital.
func NewStats(initialCapital float64) *Stats {
	return &Stats{FreeCapital: initialCapital}
}

// Append adds one record to the trade log.
func (s *Stats) Append(rec TradeRecord) {
	s.TradeLog = append(s.TradeLog, rec)
}

// WinRate returns the share of closed trades with non-negative PnL, in
// percent. Zero closed trades yields zero.
func (s *Stats) WinRate() float64 {
	total := s.SuccessfulTrades + s.UnsuccessfulTrades
	if total == 0 {
		return 0
	}
	return float64(s.SuccessfulTrades) / float64(total) * 100
}

// PositionSummary is one reconstructed position cycle from the flat trade
// log: an opening entry, at most one add-on leg, and the close if the cycle
// has ended.
type PositionSummary struct {
	Open   TradeRecord  `json:"open"`
	DCA    *TradeRecord `json:"dca,omitempty"`
	Close  *TradeRecord `json:"close,omitempty"`
	Active bool         `json:"active"`
}

// Side returns the direction of the reconstructed position.
func (ps *PositionSummary) Side() Side {
	return ps.Open.Type.Side()
}

// Positions rebuilds position summaries from the trade log, newest first.
// The reconstruction is a pure function of the log: an Open starts a group,
// a second Open before a Close is the DCA leg of the same group, a Close
// terminates it. A trailing unterminated group is reported as Active.
func (s *Stats) Positions() []PositionSummary {
	var groups []PositionSummary
	var current *PositionSummary

	for i := range s.TradeLog {
		rec := s.TradeLog[i]
		switch {
		case rec.Type.IsOpen():
			if current != nil && current.DCA == nil {
				dca := rec
				current.DCA = &dca
				continue
			}
			if current != nil {
				// A later Open supersedes the group, so it is no longer the
				// live position even without a Close record.
				current.Active = false
				groups = append(groups, *current)
			}
			current = &PositionSummary{Open: rec, Active: true}
		case rec.Type.IsClose():
			if current == nil {
				// Close without a matching open in the retained log; surface
				// it as its own terminated group.
				current = &PositionSummary{Open: rec}
			}
			closeRec := rec
			current.Close = &closeRec
			current.Active = false
			groups = append(groups, *current)
			current = nil
		}
	}

	if current != nil {
		groups = append(groups, *current)
	}

	// Reverse chronological for display.
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return groups
}

// PositionsPage returns one page of reconstructed summaries.
func (s *Stats) PositionsPage(limit, offset int) []PositionSummary {
	all := s.Positions()
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end]
}
