package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"rsi-trend-trader/internal/strategy"
)

// OrderResponse is the subset of the order endpoint response we care about.
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	OrigQty       string `json:"origQty"`
}

// OrderManager places limit orders for engine decisions. With SendOrders off
// it logs what it would have done and returns success, which keeps
// bookkeeping identical between paper and live runs.
type OrderManager struct {
	client     *Client
	symbol     string
	sendOrders bool
	logger     zerolog.Logger
}

func NewOrderManager(client *Client, symbol string, sendOrders bool, logger zerolog.Logger) *OrderManager {
	return &OrderManager{
		client:     client,
		symbol:     symbol,
		sendOrders: sendOrders,
		logger:     logger.With().Str("component", "OrderManager").Logger(),
	}
}

// Open places a limit order entering (or adding to) a position.
func (m *OrderManager) Open(ctx context.Context, side strategy.Side, quantity, price float64) error {
	binanceSide := "BUY"
	if side == strategy.SideShort {
		binanceSide = "SELL"
	}
	return m.placeLimit(ctx, binanceSide, quantity, price)
}

// Close places a reduce-only limit order flattening a position.
func (m *OrderManager) Close(ctx context.Context, side strategy.Side, quantity, price float64) error {
	binanceSide := "SELL"
	if side == strategy.SideShort {
		binanceSide = "BUY"
	}
	return m.placeLimit(ctx, binanceSide, quantity, price)
}

// SetLeverage applies the leverage factor on the exchange side.
func (m *OrderManager) SetLeverage(ctx context.Context, leverage int) error {
	if !m.sendOrders {
		m.logger.Info().Int("leverage", leverage).Msg("Order sending disabled, skipping leverage change")
		return nil
	}

	params := map[string]string{
		"symbol":   m.symbol,
		"leverage": strconv.Itoa(leverage),
	}
	if _, err := m.client.SignedPost("/fapi/v1/leverage", params); err != nil {
		return fmt.Errorf("failed to set leverage %d on %s: %w", leverage, m.symbol, err)
	}

	m.logger.Info().Int("leverage", leverage).Str("symbol", m.symbol).Msg("Leverage updated")
	return nil
}

func (m *OrderManager) placeLimit(ctx context.Context, side string, quantity, price float64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !m.sendOrders {
		m.logger.Info().
			Str("symbol", m.symbol).
			Str("side", side).
			Float64("quantity", quantity).
			Float64("price", price).
			Msg("Order sending disabled, order not placed")
		return nil
	}

	params := map[string]string{
		"symbol":      m.symbol,
		"side":        side,
		"type":        "LIMIT",
		"timeInForce": "GTC",
		"quantity":    strconv.FormatFloat(quantity, 'f', 3, 64),
		"price":       strconv.FormatFloat(price, 'f', 2, 64),
	}

	body, err := m.client.SignedPost("/fapi/v1/order", params)
	if err != nil {
		m.logger.Error().
			Err(err).
			Str("symbol", m.symbol).
			Str("side", side).
			Float64("quantity", quantity).
			Msg("Order placement failed")
		return fmt.Errorf("failed to place %s order: %w", side, err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse order response: %w", err)
	}

	m.logger.Info().
		Int64("order_id", resp.OrderID).
		Str("symbol", resp.Symbol).
		Str("side", side).
		Str("status", resp.Status).
		Float64("quantity", quantity).
		Float64("price", price).
		Msg("Order placed")
	return nil
}
