// Package pnl estimates realized day-trading profit from a session's filled
// orders.
package pnl

import (
	"context"
	"sort"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/types"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Reasons a ticker was left out of the estimate.
const (
	SkipNoBuys   = "no_buys"
	SkipOversold = "oversold"
)

const currencyPlaces = 2

// bucket is the running quantity and value of one side of one ticker.
type bucket struct {
	Quantity   decimal.Decimal
	TotalValue decimal.Decimal
}

func (b *bucket) add(o types.Order) {
	b.Quantity = b.Quantity.Add(o.Quantity)
	b.TotalValue = b.TotalValue.Add(o.Quantity.Mul(o.EffectivePrice()))
}

// TickerBreakdown explains how a single ticker fed into the estimate.
type TickerBreakdown struct {
	Ticker      string          `json:"ticker"`
	BuyQty      decimal.Decimal `json:"buy_qty"`
	BuyValue    decimal.Decimal `json:"buy_value"`
	SellQty     decimal.Decimal `json:"sell_qty"`
	SellValue   decimal.Decimal `json:"sell_value"`
	AvgBuyPrice decimal.Decimal `json:"avg_buy_price"`
	Profit      decimal.Decimal `json:"profit"`
	Matched     bool            `json:"matched"`
	SkipReason  string          `json:"skip_reason,omitempty"`
}

type Result struct {
	Status  Status            `json:"status"`
	Profit  decimal.Decimal   `json:"profit"`
	Detail  string            `json:"detail,omitempty"`
	Tickers []TickerBreakdown `json:"tickers"`
	// FilledOrders is the number of filled orders that were aggregated.
	FilledOrders int `json:"filled_orders"`
}

// Failure builds a failed result carrying msg unchanged.
func Failure(msg string) Result {
	return Result{Status: StatusFailure, Profit: decimal.Zero, Detail: msg}
}

// Estimate computes the weighted-average day-trade estimate for orders.
//
// Filled orders are grouped per ticker and side. A ticker's sells are credited
// against the average buy price only when the sold quantity does not exceed
// the bought quantity; any other ticker contributes nothing. The input order
// does not affect the result.
func Estimate(orders []types.Order) Result {
	buys := map[string]*bucket{}
	sells := map[string]*bucket{}
	filled := 0

	for _, o := range orders {
		if o.State != types.StateFilled {
			continue
		}
		if err := o.Validate(); err != nil {
			return Failure(err.Error())
		}
		filled++

		table := buys
		if o.Side == types.SideSell {
			table = sells
		}
		b := table[o.Ticker]
		if b == nil {
			b = &bucket{}
			table[o.Ticker] = b
		}
		b.add(o)
	}

	tickers := make([]string, 0, len(sells))
	for t := range sells {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	total := decimal.Zero
	breakdown := make([]TickerBreakdown, 0, len(tickers))
	for _, t := range tickers {
		s := sells[t]
		row := TickerBreakdown{Ticker: t, SellQty: s.Quantity, SellValue: s.TotalValue}

		b, ok := buys[t]
		if !ok || !b.Quantity.IsPositive() {
			row.SkipReason = SkipNoBuys
			breakdown = append(breakdown, row)
			continue
		}
		row.BuyQty, row.BuyValue = b.Quantity, b.TotalValue
		row.AvgBuyPrice = b.TotalValue.Div(b.Quantity)

		if s.Quantity.GreaterThan(b.Quantity) {
			row.SkipReason = SkipOversold
			breakdown = append(breakdown, row)
			continue
		}

		contribution := s.TotalValue.Sub(s.Quantity.Mul(row.AvgBuyPrice))
		row.Profit = contribution.Round(currencyPlaces)
		row.Matched = true
		total = total.Add(contribution)
		breakdown = append(breakdown, row)
	}

	return Result{
		Status:       StatusSuccess,
		Profit:       total.Round(currencyPlaces),
		Tickers:      breakdown,
		FilledOrders: filled,
	}
}

// EstimateFrom fetches the orders for date from src and estimates them. An
// upstream failure is passed through as a failed result without any
// aggregation.
func EstimateFrom(ctx context.Context, src interfaces.OrderSource, date string) Result {
	orders, err := src.OrdersByDate(ctx, date)
	if err != nil {
		return Failure(err.Error())
	}
	return Estimate(orders)
}
