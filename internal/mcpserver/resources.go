package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/tradelog"
	"brokerage-mcp/internal/types"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/yosida95/uritemplate/v3"
	"golang.org/x/sync/errgroup"
)

const (
	stockInfoTemplate  = "brokerage://stocks/{ticker}/info"
	portfolioSummary   = "brokerage://portfolio/summary"
	accountHistoryTmpl = "brokerage://account/history/{timespan}"

	jsonMIME = "application/json"
)

var (
	stockInfoURI      = uritemplate.MustNew(stockInfoTemplate)
	accountHistoryURI = uritemplate.MustNew(accountHistoryTmpl)
)

type StockInfo struct {
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Exchange       string  `json:"exchange"`
	Segment        string  `json:"segment"`
	InstrumentType string  `json:"instrument_type"`
	TickSize       float64 `json:"tick_size"`
	LotSize        float64 `json:"lot_size"`
	LastPrice      float64 `json:"last_price"`
	Open           float64 `json:"open"`
	High           float64 `json:"high"`
	Low            float64 `json:"low"`
	PreviousClose  float64 `json:"previous_close"`
	NetChange      float64 `json:"net_change"`
	Volume         int64   `json:"volume"`
	LowerCircuit   float64 `json:"lower_circuit"`
	UpperCircuit   float64 `json:"upper_circuit"`
}

type PortfolioSummary struct {
	Equity         float64 `json:"equity"`
	Cash           float64 `json:"cash"`
	HoldingsValue  float64 `json:"holdings_value"`
	TotalAssets    float64 `json:"total_assets"`
	UsedMargin     float64 `json:"used_margin"`
	HoldingsCount  int     `json:"holdings_count"`
	PositionsCount int     `json:"positions_count"`
	UnrealizedPnL  float64 `json:"unrealized_pnl"`
}

// TickerActivity summarizes journaled orders of one ticker.
type TickerActivity struct {
	Ticker       string `json:"ticker"`
	BuyOrders    int    `json:"buy_orders"`
	SellOrders   int    `json:"sell_orders"`
	BuyQuantity  int    `json:"buy_quantity"`
	SellQuantity int    `json:"sell_quantity"`
}

type AccountHistory struct {
	Timespan    string           `json:"timespan"`
	StartDate   string           `json:"start_date"`
	EndDate     string           `json:"end_date"`
	OrdersCount int              `json:"orders_count"`
	Tickers     []TickerActivity `json:"tickers"`
	Orders      []tradelog.Entry `json:"orders"`
}

type resourceError struct {
	Error string `json:"error"`
}

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "stock_info",
		URITemplate: stockInfoTemplate,
		Description: "Instrument details and a quote snapshot for a stock.",
		MIMEType:    jsonMIME,
	}, s.readStockInfo)
	s.mcp.AddResource(&mcp.Resource{
		Name:        "portfolio_summary",
		URI:         portfolioSummary,
		Description: "Equity, cash and the composition of the portfolio.",
		MIMEType:    jsonMIME,
	}, s.readPortfolioSummary)
	s.mcp.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "account_history",
		URITemplate: accountHistoryTmpl,
		Description: "Orders placed through this server over a timespan: " + strings.Join(tradelog.Timespans, ", ") + ".",
		MIMEType:    jsonMIME,
	}, s.readAccountHistory)
}

// jsonResource renders v, or an {"error": ...} document when err is set.
// Upstream failures are content, not protocol errors.
func jsonResource(ctx context.Context, uri string, v any, err error) (*mcp.ReadResourceResult, error) {
	if err != nil {
		logger.ErrorWithErr(ctx, "Resource read failed", err, "uri", uri)
		v = resourceError{Error: err.Error()}
	}
	b, merr := json.Marshal(v)
	if merr != nil {
		return nil, merr
	}
	return &mcp.ReadResourceResult{Contents: []*mcp.ResourceContents{{
		URI:      uri,
		MIMEType: jsonMIME,
		Text:     string(b),
	}}}, nil
}

func (s *Server) readStockInfo(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	ticker, err := normalizeTicker(stockInfoURI.Match(uri).Get("ticker").String())
	if err != nil {
		return nil, mcp.ResourceNotFoundError(uri)
	}

	var (
		in types.Instrument
		q  types.Quote
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		in, err = s.broker.Instrument(gctx, ticker)
		return err
	})
	g.Go(func() (err error) {
		q, err = s.broker.Quote(gctx, ticker)
		return err
	})
	if err := g.Wait(); err != nil {
		return jsonResource(ctx, uri, nil, fmt.Errorf("failed to get stock info for %s: %w", ticker, err))
	}

	return jsonResource(ctx, uri, StockInfo{
		Ticker:         ticker,
		Name:           in.Name,
		Exchange:       in.Exchange,
		Segment:        in.Segment,
		InstrumentType: in.InstrumentType,
		TickSize:       in.TickSize,
		LotSize:        in.LotSize,
		LastPrice:      q.LastPrice,
		Open:           q.Open,
		High:           q.High,
		Low:            q.Low,
		PreviousClose:  q.PreviousClose,
		NetChange:      q.NetChange,
		Volume:         q.Volume,
		LowerCircuit:   q.LowerCircuit,
		UpperCircuit:   q.UpperCircuit,
	}, nil)
}

func (s *Server) readPortfolioSummary(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	pf, err := s.broker.Portfolio(ctx)
	if err != nil {
		return jsonResource(ctx, req.Params.URI, nil, fmt.Errorf("failed to get portfolio summary: %w", err))
	}

	var unrealized float64
	for _, h := range pf.Holdings {
		unrealized += h.PnL
	}
	for _, p := range pf.Positions {
		unrealized += p.PnL
	}
	holdings := pf.HoldingsValue()
	return jsonResource(ctx, req.Params.URI, PortfolioSummary{
		Equity:         pf.Equity,
		Cash:           pf.Cash,
		HoldingsValue:  round2(holdings),
		TotalAssets:    round2(pf.Cash + holdings),
		UsedMargin:     pf.UsedMargin,
		HoldingsCount:  len(pf.Holdings),
		PositionsCount: len(pf.Positions),
		UnrealizedPnL:  round2(unrealized),
	}, nil)
}

func (s *Server) readAccountHistory(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	uri := req.Params.URI
	timespan := strings.ToLower(accountHistoryURI.Match(uri).Get("timespan").String())

	h, err := s.accountHistory(timespan)
	if err != nil {
		return jsonResource(ctx, uri, nil, err)
	}
	return jsonResource(ctx, uri, h, nil)
}

func (s *Server) accountHistory(timespan string) (AccountHistory, error) {
	since, err := tradelog.Since(timespan, s.now())
	if err != nil {
		return AccountHistory{}, err
	}
	if s.journal == nil {
		return AccountHistory{}, errors.New("failed to get account history: trade journal is disabled")
	}
	entries, err := s.journal.Read(since)
	if err != nil {
		return AccountHistory{}, fmt.Errorf("failed to get account history: %w", err)
	}

	h := AccountHistory{
		Timespan:    timespan,
		OrdersCount: len(entries),
		Tickers:     []TickerActivity{},
		Orders:      entries,
	}
	if len(entries) > 0 {
		h.StartDate = entries[0].Time.Format(time.RFC3339)
		h.EndDate = entries[len(entries)-1].Time.Format(time.RFC3339)
	}

	byTicker := map[string]*TickerActivity{}
	for _, e := range entries {
		a := byTicker[e.Ticker]
		if a == nil {
			a = &TickerActivity{Ticker: e.Ticker}
			byTicker[e.Ticker] = a
		}
		if e.Side == string(types.SideSell) {
			a.SellOrders++
			a.SellQuantity += e.Quantity
		} else {
			a.BuyOrders++
			a.BuyQuantity += e.Quantity
		}
	}
	for _, a := range byTicker {
		h.Tickers = append(h.Tickers, *a)
	}
	sort.Slice(h.Tickers, func(i, j int) bool { return h.Tickers[i].Ticker < h.Tickers[j].Ticker })
	return h, nil
}
