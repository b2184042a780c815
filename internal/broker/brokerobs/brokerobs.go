package brokerobs

import (
	"context"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/metrics"
	"brokerage-mcp/internal/trace"
	"brokerage-mcp/internal/types"
)

// observableBroker wraps a Broker with observability (logging, tracing and
// metrics)
type observableBroker struct {
	broker interfaces.Broker
}

// Compile-time interface check
var _ interfaces.Broker = (*observableBroker)(nil)

// Wrap wraps a broker with observability middleware
func Wrap(broker interfaces.Broker) interfaces.Broker {
	return &observableBroker{broker: broker}
}

// call opens the span shared by every method and returns a func that closes
// it and records the outcome.
func call(ctx context.Context, method string) (context.Context, func(error)) {
	ctx, span := trace.StartSpan(ctx, "broker."+method)
	start := time.Now()
	return ctx, func(err error) {
		metrics.ObserveBroker(method, err, time.Since(start))
		span.End()
	}
}

func (ob *observableBroker) LoginURL() string {
	return ob.broker.LoginURL()
}

func (ob *observableBroker) Login(ctx context.Context, requestToken string) (types.Session, error) {
	ctx, done := call(ctx, "Login")

	sess, err := ob.broker.Login(ctx, requestToken)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Login failed", err)
		return types.Session{}, err
	}

	logger.InfoSkip(ctx, 1, "Session created", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (ob *observableBroker) Logout(ctx context.Context) error {
	ctx, done := call(ctx, "Logout")

	err := ob.broker.Logout(ctx)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Logout failed", err)
		return err
	}
	logger.InfoSkip(ctx, 1, "Logged out")
	return nil
}

// Quote fetches a market quote with observability
func (ob *observableBroker) Quote(ctx context.Context, ticker string) (types.Quote, error) {
	ctx, done := call(ctx, "Quote")
	logger.DebugSkip(ctx, 1, "Fetching quote", "ticker", ticker)

	q, err := ob.broker.Quote(ctx, ticker)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quote", err, "ticker", ticker)
		return types.Quote{}, err
	}

	logger.DebugSkip(ctx, 1, "Quote fetched successfully", "ticker", ticker, "last_price", q.LastPrice)
	return q, nil
}

// LatestPrice returns the last traded price with observability
func (ob *observableBroker) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	ctx, done := call(ctx, "LatestPrice")
	logger.DebugSkip(ctx, 1, "Fetching LTP", "ticker", ticker)

	price, err := ob.broker.LatestPrice(ctx, ticker)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch LTP", err, "ticker", ticker)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "LTP fetched successfully", "ticker", ticker, "price", price)
	return price, nil
}

func (ob *observableBroker) Instrument(ctx context.Context, ticker string) (types.Instrument, error) {
	ctx, done := call(ctx, "Instrument")

	in, err := ob.broker.Instrument(ctx, ticker)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to resolve instrument", err, "ticker", ticker)
		return types.Instrument{}, err
	}
	return in, nil
}

// PlaceOrder places an order with observability
func (ob *observableBroker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	ctx, done := call(ctx, "PlaceOrder")

	logger.InfoSkip(ctx, 1, "Placing order",
		"ticker", req.Ticker,
		"side", req.Side,
		"type", req.Type,
		"qty", req.Quantity,
		"limit_price", req.LimitPrice,
		"tag", req.Tag,
	)

	resp, err := ob.broker.PlaceOrder(ctx, req)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to place order", err,
			"ticker", req.Ticker,
			"side", req.Side,
			"qty", req.Quantity,
		)
		return types.OrderResp{}, err
	}

	metrics.OrderPlaced(string(req.Side), string(req.Type))
	logger.Trade(ctx, req.Ticker, string(req.Side), req.Quantity, req.LimitPrice, resp.OrderID, "status", resp.Status)
	return resp, nil
}

func (ob *observableBroker) CancelOrder(ctx context.Context, orderID string) error {
	ctx, done := call(ctx, "CancelOrder")

	err := ob.broker.CancelOrder(ctx, orderID)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}
	logger.InfoSkip(ctx, 1, "Order cancelled", "order_id", orderID)
	return nil
}

func (ob *observableBroker) OpenOrders(ctx context.Context) ([]types.Order, error) {
	ctx, done := call(ctx, "OpenOrders")

	orders, err := ob.broker.OpenOrders(ctx)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch open orders", err)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Open orders fetched", "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) OrdersByDate(ctx context.Context, date string) ([]types.Order, error) {
	ctx, done := call(ctx, "OrdersByDate")

	orders, err := ob.broker.OrdersByDate(ctx, date)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch orders", err, "date", date)
		return nil, err
	}
	logger.DebugSkip(ctx, 1, "Orders fetched", "date", date, "count", len(orders))
	return orders, nil
}

func (ob *observableBroker) Positions(ctx context.Context) ([]types.Position, error) {
	ctx, done := call(ctx, "Positions")

	positions, err := ob.broker.Positions(ctx)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch positions", err)
		return nil, err
	}
	return positions, nil
}

func (ob *observableBroker) Portfolio(ctx context.Context) (types.Portfolio, error) {
	ctx, done := call(ctx, "Portfolio")

	pf, err := ob.broker.Portfolio(ctx)
	done(err)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch portfolio", err)
		return types.Portfolio{}, err
	}
	logger.DebugSkip(ctx, 1, "Portfolio fetched", "holdings", len(pf.Holdings), "positions", len(pf.Positions))
	return pf, nil
}
