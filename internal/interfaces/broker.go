package interfaces

import (
	"context"

	"brokerage-mcp/internal/types"
)

// OrderSource returns the orders placed on a given trading day (YYYY-MM-DD).
type OrderSource interface {
	OrdersByDate(ctx context.Context, date string) ([]types.Order, error)
}

type Broker interface {
	OrderSource

	LoginURL() string
	Login(ctx context.Context, requestToken string) (types.Session, error)
	Logout(ctx context.Context) error

	Quote(ctx context.Context, ticker string) (types.Quote, error)
	LatestPrice(ctx context.Context, ticker string) (float64, error)
	Instrument(ctx context.Context, ticker string) (types.Instrument, error)

	PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error)
	CancelOrder(ctx context.Context, orderID string) error

	OpenOrders(ctx context.Context) ([]types.Order, error)
	Positions(ctx context.Context) ([]types.Position, error)
	Portfolio(ctx context.Context) (types.Portfolio, error)
}
