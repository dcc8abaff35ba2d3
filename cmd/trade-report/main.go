// Command trade-report prints a per-strategy summary of the trade log:
// trade counts, win rate, realized PnL and commission paid.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"rsi-trend-trader/config"
	"rsi-trend-trader/internal/database"
	"rsi-trend-trader/internal/logging"
	"rsi-trend-trader/internal/strategy"
)

type strategySummary struct {
	UserID     int64
	Username   string
	StrategyID string
	Opens      int
	Closes     int
	Wins       int
	Losses     int
	PnL        float64
	Commission float64
}

func main() {
	userFlag := flag.Int64("user", 0, "limit the report to one user id")
	strategyFlag := flag.String("strategy", "", "limit the report to one strategy id")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(&logging.Config{Level: "WARN", Output: "stderr", Component: "trade-report"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := database.NewRepository(db, logger)

	userRows, _, err := repo.GetAllUsers(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load users: %v\n", err)
		os.Exit(1)
	}

	var summaries []strategySummary
	for _, u := range userRows {
		if *userFlag != 0 && u.ID != *userFlag {
			continue
		}
		configs, err := repo.GetStrategyConfigs(ctx, u.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load strategies for user %d: %v\n", u.ID, err)
			os.Exit(1)
		}
		for id := range configs {
			if *strategyFlag != "" && id != *strategyFlag {
				continue
			}
			history, err := repo.GetTradeHistory(ctx, u.ID, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load trades for user %d strategy %s: %v\n", u.ID, id, err)
				os.Exit(1)
			}
			summaries = append(summaries, summarize(u, id, history))
		}
	}

	if len(summaries) == 0 {
		fmt.Println("No trades recorded.")
		return
	}

	fmt.Printf("%-8s %-12s %-10s %7s %7s %7s %9s %12s %12s\n",
		"USER", "NAME", "STRATEGY", "OPENS", "CLOSES", "WINS", "WIN%", "PNL", "COMMISSION")
	var totalPnL, totalCommission float64
	for _, s := range summaries {
		winRate := 0.0
		if s.Closes > 0 {
			winRate = float64(s.Wins) / float64(s.Closes) * 100
		}
		fmt.Printf("%-8d %-12s %-10s %7d %7d %7d %8.1f%% %12.2f %12.2f\n",
			s.UserID, s.Username, s.StrategyID, s.Opens, s.Closes, s.Wins, winRate, s.PnL, s.Commission)
		totalPnL += s.PnL
		totalCommission += s.Commission
	}
	fmt.Printf("\nTotal realized PnL: %.2f$   Total commission: %.2f$\n", totalPnL, totalCommission)
}

func summarize(u database.UserRow, strategyID string, history []strategy.TradeRecord) strategySummary {
	s := strategySummary{UserID: u.ID, Username: u.Username, StrategyID: strategyID}
	for _, rec := range history {
		s.Commission += rec.Commission
		if rec.Type.IsOpen() {
			s.Opens++
			continue
		}
		s.Closes++
		if rec.RealizedPnL < 0 {
			s.Losses++
		} else {
			s.Wins++
		}
	}
	s.PnL = round2(totalRealized(history))
	return s
}

func totalRealized(history []strategy.TradeRecord) float64 {
	var sum float64
	for _, rec := range history {
		if rec.Type.IsClose() {
			sum += rec.RealizedPnL
		}
	}
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
