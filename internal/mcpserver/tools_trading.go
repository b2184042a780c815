package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/tradelog"
	"brokerage-mcp/internal/types"
)

const orderTag = "mcp"

type MarketOrderInput struct {
	Ticker        string `json:"ticker" jsonschema:"exchange trading symbol, e.g. INFY"`
	Quantity      int    `json:"quantity" jsonschema:"number of shares"`
	TimeInForce   string `json:"time_in_force,omitempty" jsonschema:"day (default) or ioc"`
	ExtendedHours bool   `json:"extended_hours,omitempty" jsonschema:"queue as an after market order"`
}

type LimitOrderInput struct {
	Ticker        string  `json:"ticker" jsonschema:"exchange trading symbol, e.g. INFY"`
	Quantity      int     `json:"quantity" jsonschema:"number of shares"`
	Price         float64 `json:"price" jsonschema:"limit price"`
	TimeInForce   string  `json:"time_in_force,omitempty" jsonschema:"day (default) or ioc"`
	ExtendedHours bool    `json:"extended_hours,omitempty" jsonschema:"queue as an after market order"`
}

type CancelOrderInput struct {
	OrderID string `json:"order_id" jsonschema:"id of the open order to cancel"`
}

type OrderOutput struct {
	Status    string  `json:"status"`
	OrderID   string  `json:"order_id"`
	State     string  `json:"state"`
	Ticker    string  `json:"ticker"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price,omitempty"`
	Type      string  `json:"type"`
	Side      string  `json:"side"`
	CreatedAt string  `json:"created_at"`
	Message   string  `json:"message,omitempty"`
}

type CancelOutput struct {
	Status  string `json:"status"`
	OrderID string `json:"order_id"`
	Message string `json:"message"`
}

func (s *Server) registerTradingTools() {
	addTool(s, "buy_stock_market_order",
		"Buy a quantity of a stock at the current market price.",
		func(ctx context.Context, in MarketOrderInput) (any, error) {
			return s.placeOrder(ctx, marketReq(types.SideBuy, in))
		})
	addTool(s, "sell_stock_market_order",
		"Sell a quantity of a stock at the current market price.",
		func(ctx context.Context, in MarketOrderInput) (any, error) {
			return s.placeOrder(ctx, marketReq(types.SideSell, in))
		})
	addTool(s, "buy_stock_limit_order",
		"Place a limit order to buy a stock at or below price.",
		func(ctx context.Context, in LimitOrderInput) (any, error) {
			return s.placeOrder(ctx, limitReq(types.SideBuy, in))
		})
	addTool(s, "sell_stock_limit_order",
		"Place a limit order to sell a stock at or above price.",
		func(ctx context.Context, in LimitOrderInput) (any, error) {
			return s.placeOrder(ctx, limitReq(types.SideSell, in))
		})
	addTool(s, "cancel_order", "Cancel an open order that has not executed yet.", s.cancelOrder)
}

func marketReq(side types.Side, in MarketOrderInput) types.OrderReq {
	return types.OrderReq{
		Ticker:        in.Ticker,
		Side:          side,
		Type:          types.OrderTypeMarket,
		Quantity:      in.Quantity,
		TimeInForce:   in.TimeInForce,
		ExtendedHours: in.ExtendedHours,
		Tag:           orderTag,
	}
}

func limitReq(side types.Side, in LimitOrderInput) types.OrderReq {
	return types.OrderReq{
		Ticker:        in.Ticker,
		Side:          side,
		Type:          types.OrderTypeLimit,
		Quantity:      in.Quantity,
		LimitPrice:    in.Price,
		TimeInForce:   in.TimeInForce,
		ExtendedHours: in.ExtendedHours,
		Tag:           orderTag,
	}
}

func (s *Server) placeOrder(ctx context.Context, req types.OrderReq) (any, error) {
	what := string(req.Side)
	if req.Type == types.OrderTypeLimit {
		what += " limit"
	}

	ticker, err := normalizeTicker(req.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order: %w", what, err)
	}
	req.Ticker = ticker
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("failed to place %s order: quantity must be positive, got %d", what, req.Quantity)
	}
	if req.Type == types.OrderTypeLimit && req.LimitPrice <= 0 {
		return nil, fmt.Errorf("failed to place %s order: price must be positive, got %v", what, req.LimitPrice)
	}

	resp, err := s.broker.PlaceOrder(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to place %s order: %w", what, err)
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = s.now()
	}
	s.record(ctx, req, resp)

	return OrderOutput{
		Status:    StatusSuccess,
		OrderID:   resp.OrderID,
		State:     resp.Status,
		Ticker:    req.Ticker,
		Quantity:  req.Quantity,
		Price:     req.LimitPrice,
		Type:      string(req.Type),
		Side:      string(req.Side),
		CreatedAt: resp.CreatedAt.Format(time.RFC3339),
		Message:   resp.Message,
	}, nil
}

// record journals an accepted order. A journal failure does not fail the
// order, which has already reached the exchange.
func (s *Server) record(ctx context.Context, req types.OrderReq, resp types.OrderResp) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(tradelog.Entry{
		Time:       resp.CreatedAt,
		OrderID:    resp.OrderID,
		Ticker:     req.Ticker,
		Side:       string(req.Side),
		Type:       string(req.Type),
		Quantity:   req.Quantity,
		LimitPrice: req.LimitPrice,
		Status:     resp.Status,
		Message:    resp.Message,
		Mode:       s.mode,
	})
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to journal order", err, "order_id", resp.OrderID)
	}
}

func (s *Server) cancelOrder(ctx context.Context, in CancelOrderInput) (any, error) {
	id := strings.TrimSpace(in.OrderID)
	if id == "" {
		return nil, errors.New("failed to cancel order: order_id is required")
	}
	if err := s.broker.CancelOrder(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to cancel order %s: %w", id, err)
	}
	return CancelOutput{Status: StatusSuccess, OrderID: id, Message: "Order cancelled successfully"}, nil
}
