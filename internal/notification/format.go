package notification

import (
	"fmt"
	"strings"

	"rsi-trend-trader/internal/analysis"
	"rsi-trend-trader/internal/market"
	"rsi-trend-trader/internal/strategy"
)

// FormatPrice renders a price as a rounded dollar amount with thousands
// separators, e.g. "64,250$".
func FormatPrice(price float64) string {
	return addThousands(fmt.Sprintf("%.0f", price)) + "$"
}

// FormatSignedPrice renders a price difference with an explicit sign.
func FormatSignedPrice(diff float64) string {
	s := addThousands(fmt.Sprintf("%.0f", diff))
	if diff >= 0 && !strings.HasPrefix(s, "+") {
		s = "+" + s
	}
	return s + "$"
}

// FormatNumber renders an amount with up to two decimals, trailing zeros
// trimmed.
func FormatNumber(n float64) string {
	s := fmt.Sprintf("%.2f", n)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s + "$"
}

func addThousands(s string) string {
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

func decisionIcon(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}

func trendIcon(state analysis.MarketState) string {
	if state.Trend == analysis.TrendLong {
		return "📈"
	}
	return "📉"
}

// TrendAlertMessage announces a trend change. A direction flip and a
// strength-only shift get different wording.
func TrendAlertMessage(prev, cur analysis.MarketState) string {
	directionChanged, _ := cur.ChangeFrom(prev)
	if directionChanged {
		return fmt.Sprintf("🚨 *Trend Alert*\n\nTrend changes to `%s` | `%s` %s",
			cur.Trend, cur.Strength, trendIcon(cur))
	}
	return fmt.Sprintf("🚨 *Trend Alert*\n\nTrend strength changes to `%s` | `%s` %s",
		cur.Trend, cur.Strength, trendIcon(cur))
}

// OverviewMessage renders the per-candle market summary.
func OverviewMessage(symbol string, snap *market.Snapshot, state analysis.MarketState, minADX float64) string {
	sep := "▫️"
	var b strings.Builder

	fmt.Fprintf(&b, "*%s Market Overview*\n", symbol)
	fmt.Fprintf(&b, "\n📌 *Market Trend*\n")
	fmt.Fprintf(&b, "%s Direction: `%s` | `%s` %s\n", sep, state.Trend, state.Strength, trendIcon(state))
	fmt.Fprintf(&b, "%s Strength (ADX): `%.0f` (_min_ `%.0f`) %s\n", sep, snap.ADX, minADX, decisionIcon(snap.ADX > minADX))
	fmt.Fprintf(&b, "\n📊 *Volume*\n")
	fmt.Fprintf(&b, "%s Now: `%.0f` (_avg:_ `%.0f`_)_ %s\n", sep, snap.Volume, snap.AverageVolume, decisionIcon(snap.HighVolume()))
	fmt.Fprintf(&b, "\n📊 *RSI*\n")
	fmt.Fprintf(&b, "%s Now: `%.1f`\n", sep, snap.RSIFast)
	fmt.Fprintf(&b, "\n💰 *Price*\n")
	fmt.Fprintf(&b, "%s Now: `%s`\n", sep, FormatPrice(snap.Close))
	fmt.Fprintf(&b, "%s Range: `%s - %s`\n", sep, FormatPrice(snap.Low), FormatPrice(snap.High))
	fmt.Fprintf(&b, "\n📊 *EMA Indicators*\n")
	fmt.Fprintf(&b, "%s EMA 7: `%s`\n", sep, FormatPrice(snap.EMAShort))
	fmt.Fprintf(&b, "%s EMA 25: `%s`\n", sep, FormatPrice(snap.EMAMedium))
	fmt.Fprintf(&b, "%s EMA 99: `%s`\n", sep, FormatPrice(snap.EMALong))
	return b.String()
}

// BalanceMessage renders one strategy's capital and counters.
func BalanceMessage(strat *strategy.TradeStrategy) string {
	stats := strat.Stats
	pnlIcon := "✅"
	if stats.CumulativePnL < 0 {
		pnlIcon = "❌"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 *Balance* (_%s_)\n\n", strat.Config.Name)
	fmt.Fprintf(&b, "▫️ Free: `%s`\n", FormatNumber(stats.FreeCapital))
	fmt.Fprintf(&b, "▫️ Allocated: `%s`\n", FormatNumber(stats.AllocatedCapital))
	fmt.Fprintf(&b, "▫️ PnL: `%s` %s\n", FormatNumber(stats.CumulativePnL), pnlIcon)
	fmt.Fprintf(&b, "▫️ Commission: `%s`\n", FormatNumber(stats.TotalCommission))
	fmt.Fprintf(&b, "▫️ Trades: `%d` won / `%d` lost (`%.0f%%`)\n",
		stats.SuccessfulTrades, stats.UnsuccessfulTrades, stats.WinRate())
	return b.String()
}

// PositionsMessage renders the open sides of one strategy.
func PositionsMessage(strat *strategy.TradeStrategy) string {
	pos := strat.Position

	var b strings.Builder
	fmt.Fprintf(&b, "🔑 *Positions* (_%s_)\n\n", strat.Config.Name)

	if pos.Long.Opened {
		multiplier := ""
		if pos.Long.AddOnCount > 1 {
			multiplier = fmt.Sprintf(" x%d", pos.Long.AddOnCount)
		}
		fmt.Fprintf(&b, "📈 *Long*%s: `%.2f$`\n", multiplier, pos.Long.EntryPrice)
		fmt.Fprintf(&b, "📦️ *Size:* `%.2f$`\n", pos.Long.EntrySize)
	}
	if pos.Short.Opened {
		multiplier := ""
		if pos.Short.AddOnCount > 1 {
			multiplier = fmt.Sprintf(" x%d", pos.Short.AddOnCount)
		}
		fmt.Fprintf(&b, "📉 *Short*%s: `%.2f$`\n", multiplier, pos.Short.EntryPrice)
		fmt.Fprintf(&b, "▫️ *Size:* `%.2f$`\n", pos.Short.EntrySize)
	}
	if !pos.Long.Opened && !pos.Short.Opened {
		b.WriteString("💤 No active positions\n")
	}
	return b.String()
}

// ConfigMessage renders one strategy's thresholds.
func ConfigMessage(cfg *strategy.Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚙️ *Strategy* `%s`\n\n", cfg.Name)
	b.WriteString("🔒 *Risk checks*\n")
	fmt.Fprintf(&b, "     🧭 ADX min: `%.0f`\n", cfg.MinADX)
	if cfg.StrongTrendOnly {
		b.WriteString("     💹️ `Strong Trend`\n")
	}
	if cfg.HighVolumeOnly {
		b.WriteString("     📊 `High Volume`\n")
	}
	if cfg.CloseOnTrendReverse {
		b.WriteString("     🔃 `Close on reverse`\n")
	}
	b.WriteString("\n📊 *RSI thresholds*\n")
	fmt.Fprintf(&b, "     📈 📍 `%d` → `%d` 🔄 → `%d` 🎯\n", cfg.LongEnter, cfg.LongDCA, cfg.LongExit)
	fmt.Fprintf(&b, "     📉 📍 `%d` → `%d` 🔄 → `%d` 🎯\n", cfg.ShortEnter, cfg.ShortDCA, cfg.ShortExit)
	fmt.Fprintf(&b, "\n📦 Size: `%s` x`%d`\n", FormatNumber(cfg.PositionSize), cfg.Leverage)
	return b.String()
}

// HistoryMessage renders a page of reconstructed position groups, newest
// first.
func HistoryMessage(strat *strategy.TradeStrategy, limit, offset int) string {
	groups := strat.Stats.PositionsPage(limit, offset)

	var b strings.Builder
	fmt.Fprintf(&b, "📜 *Trade History* (_%s_)\n\n", strat.Config.Name)

	if len(groups) == 0 {
		b.WriteString("💤 No trades yet\n")
		return b.String()
	}

	for _, g := range groups {
		icon := "📈"
		if g.Open.Type.Side() == strategy.SideShort {
			icon = "📉"
		}
		fmt.Fprintf(&b, "%s `%s` @ `%.2f$`", icon, g.Open.Type, g.Open.Price)
		if g.DCA != nil {
			fmt.Fprintf(&b, " 🔄 `%.2f$`", g.DCA.Price)
		}
		if g.Close != nil {
			result := "✅"
			if g.Close.RealizedPnL < 0 {
				result = "❌"
			}
			fmt.Fprintf(&b, " → `%.2f$` %s `%s`", g.Close.Price, result, FormatNumber(g.Close.RealizedPnL))
		} else if g.Active {
			b.WriteString(" ⏳ _active_")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// TradeMessage renders one executed trade event.
func TradeMessage(strategyName string, rec strategy.TradeRecord) string {
	icon := "📈"
	if rec.Type.Side() == strategy.SideShort {
		icon = "📉"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* (_%s_)\n\n", icon, rec.Type, strategyName)
	fmt.Fprintf(&b, "▫️ Price: `%.2f$`\n", rec.Price)
	fmt.Fprintf(&b, "▫️ Size: `%s` x`%d`\n", FormatNumber(rec.Size), rec.Leverage)
	if rec.Comment != "" {
		fmt.Fprintf(&b, "▫️ Reason: _%s_\n", rec.Comment)
	}
	if rec.Type.IsClose() {
		result := "✅"
		if rec.RealizedPnL < 0 {
			result = "❌"
		}
		fmt.Fprintf(&b, "▫️ PnL: `%s` %s\n", FormatNumber(rec.RealizedPnL), result)
		fmt.Fprintf(&b, "▫️ Total: `%s`\n", FormatNumber(rec.CumulativePnL))
	}
	return b.String()
}
