package mcpserver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"brokerage-mcp/internal/types"
)

type DateInput struct {
	Date string `json:"date" jsonschema:"trading date in YYYY-MM-DD format, e.g. 2025-05-02"`
}

type PortfolioOutput struct {
	Status         string  `json:"status"`
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	OpeningBalance float64 `json:"opening_balance"`
	Collateral     float64 `json:"collateral"`
	UsedMargin     float64 `json:"used_margin"`
	HoldingsValue  float64 `json:"holdings_value"`
	HoldingsCount  int     `json:"holdings_count"`
	PositionsCount int     `json:"positions_count"`
}

type PositionRecord struct {
	Ticker          string  `json:"ticker"`
	Exchange        string  `json:"exchange"`
	Product         string  `json:"product"`
	Quantity        float64 `json:"quantity"`
	AverageBuyPrice float64 `json:"average_buy_price"`
	CostBasis       float64 `json:"cost_basis"`
	LastPrice       float64 `json:"last_price"`
	PnL             float64 `json:"pnl"`
}

type PositionsOutput struct {
	Status    string           `json:"status"`
	Positions []PositionRecord `json:"positions"`
}

type OrderRecord struct {
	OrderID        string   `json:"order_id"`
	Ticker         string   `json:"ticker"`
	Side           string   `json:"side"`
	Quantity       float64  `json:"quantity"`
	Type           string   `json:"type"`
	Price          *float64 `json:"price"`
	CreatedAt      string   `json:"created_at"`
	State          string   `json:"state"`
	FilledQuantity float64  `json:"filled_quantity"`
	AveragePrice   *float64 `json:"average_price"`
	StatusMessage  string   `json:"status_message,omitempty"`
}

type OpenOrdersOutput struct {
	Status string        `json:"status"`
	Orders []OrderRecord `json:"orders"`
}

type OrdersByDateOutput struct {
	Status      string        `json:"status"`
	Date        string        `json:"date"`
	OrdersCount int           `json:"orders_count"`
	Orders      []OrderRecord `json:"orders"`
}

func (s *Server) registerPortfolioTools() {
	addTool(s, "get_portfolio",
		"Get account equity, available cash, margin usage and the value of holdings.",
		s.getPortfolio)
	addTool(s, "get_positions",
		"Get current positions with quantity, average buy price and cost basis.",
		s.getPositions)
	addTool(s, "get_open_orders", "Get orders that are still waiting to execute.", s.getOpenOrders)
	addTool(s, "get_orders_by_date",
		"Get all orders (open, filled, cancelled, rejected) created on a date, newest first. Kite only keeps the current trading day.",
		s.getOrdersByDate)
}

func (s *Server) getPortfolio(ctx context.Context, _ struct{}) (any, error) {
	pf, err := s.broker.Portfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	return PortfolioOutput{
		Status:         StatusSuccess,
		Equity:         pf.Equity,
		Cash:           pf.Cash,
		OpeningBalance: pf.OpeningBalance,
		Collateral:     pf.Collateral,
		UsedMargin:     pf.UsedMargin,
		HoldingsValue:  round2(pf.HoldingsValue()),
		HoldingsCount:  len(pf.Holdings),
		PositionsCount: len(pf.Positions),
	}, nil
}

func (s *Server) getPositions(ctx context.Context, _ struct{}) (any, error) {
	positions, err := s.broker.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	out := PositionsOutput{Status: StatusSuccess, Positions: make([]PositionRecord, 0, len(positions))}
	for _, p := range positions {
		out.Positions = append(out.Positions, PositionRecord{
			Ticker:          p.Ticker,
			Exchange:        p.Exchange,
			Product:         p.Product,
			Quantity:        p.Quantity,
			AverageBuyPrice: p.AverageBuyPrice,
			CostBasis:       round2(p.CostBasis()),
			LastPrice:       p.LastPrice,
			PnL:             p.PnL,
		})
	}
	return out, nil
}

func (s *Server) getOpenOrders(ctx context.Context, _ struct{}) (any, error) {
	orders, err := s.broker.OpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get open orders: %w", err)
	}
	return OpenOrdersOutput{Status: StatusSuccess, Orders: orderRecords(orders)}, nil
}

func (s *Server) getOrdersByDate(ctx context.Context, in DateInput) (any, error) {
	date := strings.TrimSpace(in.Date)
	orders, err := s.broker.OrdersByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders for date %s: %w", date, err)
	}
	records := orderRecords(orders)
	return OrdersByDateOutput{
		Status:      StatusSuccess,
		Date:        date,
		OrdersCount: len(records),
		Orders:      records,
	}, nil
}

func orderRecords(orders []types.Order) []OrderRecord {
	out := make([]OrderRecord, 0, len(orders))
	for _, o := range orders {
		r := OrderRecord{
			OrderID:        o.ID,
			Ticker:         o.Ticker,
			Side:           string(o.Side),
			Quantity:       o.Quantity.InexactFloat64(),
			Type:           string(o.Type),
			State:          string(o.State),
			FilledQuantity: o.FilledQuantity.InexactFloat64(),
			StatusMessage:  o.StatusMessage,
		}
		if o.Price.IsPositive() {
			p := o.Price.InexactFloat64()
			r.Price = &p
		}
		if o.AveragePrice.Valid && o.AveragePrice.Decimal.IsPositive() {
			p := o.AveragePrice.Decimal.InexactFloat64()
			r.AveragePrice = &p
		}
		if !o.CreatedAt.IsZero() {
			r.CreatedAt = o.CreatedAt.Format(time.RFC3339)
		}
		out = append(out, r)
	}
	return out
}
