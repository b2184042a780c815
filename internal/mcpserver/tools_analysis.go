package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"brokerage-mcp/internal/metrics"
	"brokerage-mcp/internal/pnl"

	"github.com/shopspring/decimal"
)

type TickerEstimate struct {
	Ticker      string  `json:"ticker"`
	BuyQty      float64 `json:"buy_qty"`
	SellQty     float64 `json:"sell_qty"`
	AvgBuyPrice float64 `json:"avg_buy_price"`
	SellValue   float64 `json:"sell_value"`
	Profit      float64 `json:"profit"`
	Matched     bool    `json:"matched"`
	SkipReason  string  `json:"skip_reason,omitempty"`
}

type EstimateOutput struct {
	Status       string           `json:"status"`
	Date         string           `json:"date"`
	Profit       float64          `json:"profit"`
	Detail       string           `json:"detail,omitempty"`
	FilledOrders int              `json:"filled_orders"`
	Tickers      []TickerEstimate `json:"tickers"`
}

type LotMatch struct {
	BuyID     string  `json:"buy_id"`
	SellID    string  `json:"sell_id"`
	Quantity  float64 `json:"quantity"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Profit    float64 `json:"profit"`
	Fees      float64 `json:"fees"`
}

type TickerResult struct {
	Ticker            string     `json:"ticker"`
	BuyOrders         int        `json:"buy_orders"`
	SellOrders        int        `json:"sell_orders"`
	MatchedTrades     int        `json:"matched_trades"`
	BuyShares         float64    `json:"buy_shares"`
	SellShares        float64    `json:"sell_shares"`
	MatchedShares     float64    `json:"matched_shares"`
	Fees              float64    `json:"fees"`
	Profit            float64    `json:"profit"`
	AvgProfitPerShare float64    `json:"avg_profit_per_share"`
	Matches           []LotMatch `json:"matches"`
}

type ProfitAnalysisOutput struct {
	Status        string         `json:"status"`
	Date          string         `json:"date"`
	TotalProfit   float64        `json:"total_profit"`
	TickerResults []TickerResult `json:"ticker_results"`
	MatchedTrades int            `json:"matched_trades"`
	TradeCount    int            `json:"trade_count"`
	Algorithm     string         `json:"algorithm"`
}

func (s *Server) registerAnalysisTools() {
	addTool(s, "estimate_day_trade_profit",
		"Estimate realized day-trade profit for a date from filled orders, crediting each ticker's sells against its weighted-average buy price. "+
			"Tickers sold without buys, or sold beyond the bought quantity, contribute nothing.",
		s.estimateDayTradeProfit)
	addTool(s, "analyze_trading_profit",
		"Analyze a day's filled orders by pairing each buy with later sells at the closest price, net of proportional fees.",
		s.analyzeTradingProfit)
}

// estimateDayTradeProfit reports a failed fetch or a malformed order as a
// failure result, not as a tool error.
func (s *Server) estimateDayTradeProfit(ctx context.Context, in DateInput) (any, error) {
	date := strings.TrimSpace(in.Date)
	res := pnl.EstimateFrom(ctx, s.broker, date)

	out := EstimateOutput{
		Status:       string(res.Status),
		Date:         date,
		Profit:       money(res.Profit),
		Detail:       res.Detail,
		FilledOrders: res.FilledOrders,
		Tickers:      make([]TickerEstimate, 0, len(res.Tickers)),
	}
	for _, t := range res.Tickers {
		out.Tickers = append(out.Tickers, TickerEstimate{
			Ticker:      t.Ticker,
			BuyQty:      t.BuyQty.InexactFloat64(),
			SellQty:     t.SellQty.InexactFloat64(),
			AvgBuyPrice: money(t.AvgBuyPrice),
			SellValue:   money(t.SellValue),
			Profit:      money(t.Profit),
			Matched:     t.Matched,
			SkipReason:  t.SkipReason,
		})
	}
	if res.Status == pnl.StatusSuccess {
		metrics.SetEstimatedProfit(out.Profit)
	}
	return out, nil
}

func (s *Server) analyzeTradingProfit(ctx context.Context, in DateInput) (any, error) {
	date := strings.TrimSpace(in.Date)
	orders, err := s.broker.OrdersByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze trading profit: %w", err)
	}
	rep := pnl.MatchLots(orders)
	if rep.Status != pnl.StatusSuccess {
		return nil, errors.New("failed to analyze trading profit: " + rep.Detail)
	}

	out := ProfitAnalysisOutput{
		Status:        StatusSuccess,
		Date:          date,
		TotalProfit:   money(rep.TotalProfit),
		TickerResults: make([]TickerResult, 0, len(rep.Tickers)),
		MatchedTrades: rep.MatchedTrades,
		TradeCount:    rep.TradeCount,
		Algorithm:     rep.Algorithm,
	}
	for _, t := range rep.Tickers {
		tr := TickerResult{
			Ticker:            t.Ticker,
			BuyOrders:         t.BuyOrders,
			SellOrders:        t.SellOrders,
			MatchedTrades:     len(t.Matches),
			BuyShares:         t.BuyShares.InexactFloat64(),
			SellShares:        t.SellShares.InexactFloat64(),
			MatchedShares:     t.MatchedShares.InexactFloat64(),
			Fees:              money(t.Fees),
			Profit:            money(t.Profit),
			AvgProfitPerShare: money(t.AvgProfitPerShare),
			Matches:           make([]LotMatch, 0, len(t.Matches)),
		}
		for _, m := range t.Matches {
			tr.Matches = append(tr.Matches, LotMatch{
				BuyID:     m.BuyID,
				SellID:    m.SellID,
				Quantity:  m.Quantity.InexactFloat64(),
				BuyPrice:  m.BuyPrice.InexactFloat64(),
				SellPrice: m.SellPrice.InexactFloat64(),
				Profit:    money(m.Profit),
				Fees:      money(m.Fees),
			})
		}
		out.TickerResults = append(out.TickerResults, tr)
	}
	return out, nil
}

// money converts an amount to float64 at currency precision.
func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func round2(v float64) float64 {
	return money(decimal.NewFromFloat(v))
}
