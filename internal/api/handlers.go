package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rsi-trend-trader/internal/auth"
	"rsi-trend-trader/internal/strategy"
	"rsi-trend-trader/internal/users"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	if req.Username != s.config.AdminUser ||
		auth.CheckPassword(s.config.AdminHash, req.Password) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := s.jwtManager.GenerateAccessToken(req.Username)
	if err != nil {
		s.log.Error("Failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"expires_in":   int64(s.jwtManager.AccessTokenDuration().Seconds()),
	})
}

func (s *Server) handleListUsers(c *gin.Context) {
	type userSummary struct {
		ID         int64    `json:"id"`
		Username   string   `json:"username"`
		Strategies []string `json:"strategies"`
	}

	var list []userSummary
	s.registry.ForEach(func(u *users.User) {
		summary := userSummary{ID: u.ID, Username: u.Username}
		for _, strat := range u.Strategies {
			summary.Strategies = append(summary.Strategies, strat.ID)
		}
		list = append(list, summary)
	})
	c.JSON(http.StatusOK, gin.H{"users": list})
}

func (s *Server) lookupUser(c *gin.Context) *users.User {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return nil
	}
	u := s.registry.Get(id)
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return nil
	}
	return u
}

func (s *Server) handleBalance(c *gin.Context) {
	u := s.lookupUser(c)
	if u == nil {
		return
	}

	type balance struct {
		StrategyID         string  `json:"strategy_id"`
		FreeCapital        float64 `json:"free_capital"`
		AllocatedCapital   float64 `json:"allocated_capital"`
		CumulativePnL      float64 `json:"cumulative_pnl"`
		TotalCommission    float64 `json:"total_commission"`
		SuccessfulTrades   int     `json:"successful_trades"`
		UnsuccessfulTrades int     `json:"unsuccessful_trades"`
		WinRate            float64 `json:"win_rate"`
	}

	var balances []balance
	for _, strat := range u.Strategies {
		strat.WithLock(func() {
			balances = append(balances, balance{
				StrategyID:         strat.ID,
				FreeCapital:        strat.Stats.FreeCapital,
				AllocatedCapital:   strat.Stats.AllocatedCapital,
				CumulativePnL:      strat.Stats.CumulativePnL,
				TotalCommission:    strat.Stats.TotalCommission,
				SuccessfulTrades:   strat.Stats.SuccessfulTrades,
				UnsuccessfulTrades: strat.Stats.UnsuccessfulTrades,
				WinRate:            strat.Stats.WinRate(),
			})
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "balances": balances})
}

func (s *Server) handlePositions(c *gin.Context) {
	u := s.lookupUser(c)
	if u == nil {
		return
	}

	type side struct {
		Opened        bool    `json:"opened"`
		EntryPrice    float64 `json:"entry_price"`
		EntrySize     float64 `json:"entry_size"`
		EntryFullSize float64 `json:"entry_full_size"`
		AddOnCount    int     `json:"add_on_count"`
	}
	type position struct {
		StrategyID string `json:"strategy_id"`
		Long       side   `json:"long"`
		Short      side   `json:"short"`
		Leverage   int    `json:"leverage"`
	}

	toSide := func(s strategy.SideState) side {
		return side{
			Opened:        s.Opened,
			EntryPrice:    s.EntryPrice,
			EntrySize:     s.EntrySize,
			EntryFullSize: s.EntryFullSize,
			AddOnCount:    s.AddOnCount,
		}
	}

	var positions []position
	for _, strat := range u.Strategies {
		strat.WithLock(func() {
			positions = append(positions, position{
				StrategyID: strat.ID,
				Long:       toSide(strat.Position.Long),
				Short:      toSide(strat.Position.Short),
				Leverage:   strat.Position.CurrentLeverage,
			})
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "positions": positions})
}

func (s *Server) handleHistory(c *gin.Context) {
	u := s.lookupUser(c)
	if u == nil {
		return
	}

	strategyID := c.DefaultQuery("strategy", "default")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	strat := u.Strategy(strategyID)
	if strat == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "strategy not found"})
		return
	}

	var groups []strategy.PositionSummary
	strat.WithLock(func() {
		groups = strat.Stats.PositionsPage(limit, offset)
	})
	c.JSON(http.StatusOK, gin.H{
		"user_id":     u.ID,
		"strategy_id": strategyID,
		"limit":       limit,
		"offset":      offset,
		"positions":   groups,
	})
}

func (s *Server) handleStrategies(c *gin.Context) {
	u := s.lookupUser(c)
	if u == nil {
		return
	}

	var configs []*strategy.Config
	for _, strat := range u.Strategies {
		strat.WithLock(func() {
			cfg := *strat.Config
			configs = append(configs, &cfg)
		})
	}
	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "strategies": configs})
}
