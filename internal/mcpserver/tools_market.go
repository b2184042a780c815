package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type TickerInput struct {
	Ticker string `json:"ticker" jsonschema:"exchange trading symbol, e.g. INFY"`
}

type QuoteOutput struct {
	Status         string  `json:"status"`
	Ticker         string  `json:"ticker"`
	AskPrice       float64 `json:"ask_price"`
	BidPrice       float64 `json:"bid_price"`
	LastTradePrice float64 `json:"last_trade_price"`
	PreviousClose  float64 `json:"previous_close"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	NetChange      float64 `json:"net_change"`
	Volume         int64   `json:"volume"`
	UpdatedAt      string  `json:"updated_at"`
}

type PriceOutput struct {
	Status string  `json:"status"`
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

func (s *Server) registerMarketTools() {
	addTool(s, "get_stock_quote",
		"Get the latest quote for a stock: last trade, bid/ask, previous close, day range and volume.",
		s.getStockQuote)
	addTool(s, "get_latest_price", "Get only the last traded price of a stock.", s.getLatestPrice)
}

func normalizeTicker(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if t == "" {
		return "", errors.New("ticker is required")
	}
	return t, nil
}

func (s *Server) getStockQuote(ctx context.Context, in TickerInput) (any, error) {
	ticker, err := normalizeTicker(in.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	q, err := s.broker.Quote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}
	out := QuoteOutput{
		Status:         StatusSuccess,
		Ticker:         ticker,
		AskPrice:       q.AskPrice,
		BidPrice:       q.BidPrice,
		LastTradePrice: q.LastPrice,
		PreviousClose:  q.PreviousClose,
		Open:           q.Open,
		High:           q.High,
		Low:            q.Low,
		NetChange:      q.NetChange,
		Volume:         q.Volume,
	}
	if !q.UpdatedAt.IsZero() {
		out.UpdatedAt = q.UpdatedAt.Format(time.RFC3339)
	}
	return out, nil
}

func (s *Server) getLatestPrice(ctx context.Context, in TickerInput) (any, error) {
	ticker, err := normalizeTicker(in.Ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get price: %w", err)
	}
	price, err := s.broker.LatestPrice(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to get price for %s: %w", ticker, err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("no price data found for %s", ticker)
	}
	return PriceOutput{Status: StatusSuccess, Ticker: ticker, Price: price}, nil
}
