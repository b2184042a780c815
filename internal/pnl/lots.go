package pnl

import (
	"sort"

	"brokerage-mcp/internal/types"

	"github.com/shopspring/decimal"
)

const AlgorithmClosestPrice = "closest_price_matching"

type lot struct {
	order     types.Order
	price     decimal.Decimal
	remaining decimal.Decimal
}

// Match pairs part of a buy with part of a later sell.
type Match struct {
	BuyID     string          `json:"buy_id"`
	SellID    string          `json:"sell_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	BuyPrice  decimal.Decimal `json:"buy_price"`
	SellPrice decimal.Decimal `json:"sell_price"`
	Fees      decimal.Decimal `json:"fees"`
	Profit    decimal.Decimal `json:"profit"`
}

type TickerLots struct {
	Ticker            string          `json:"ticker"`
	BuyOrders         int             `json:"buy_orders"`
	SellOrders        int             `json:"sell_orders"`
	BuyShares         decimal.Decimal `json:"buy_shares"`
	SellShares        decimal.Decimal `json:"sell_shares"`
	MatchedShares     decimal.Decimal `json:"matched_shares"`
	Fees              decimal.Decimal `json:"fees"`
	Profit            decimal.Decimal `json:"profit"`
	AvgProfitPerShare decimal.Decimal `json:"avg_profit_per_share"`
	Matches           []Match         `json:"matches"`
}

type LotReport struct {
	Status        Status          `json:"status"`
	Detail        string          `json:"detail,omitempty"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	Tickers       []TickerLots    `json:"ticker_results"`
	MatchedTrades int             `json:"matched_trades"`
	TradeCount    int             `json:"trade_count"`
	Algorithm     string          `json:"algorithm"`
}

// MatchLots pairs each filled buy with sells placed after it, preferring the
// sell whose price is closest to the buy price. Fees of both legs are charged
// in proportion to the matched quantity.
func MatchLots(orders []types.Order) LotReport {
	type legs struct{ buys, sells []*lot }
	groups := map[string]*legs{}
	filled := 0

	for _, o := range orders {
		if o.State != types.StateFilled {
			continue
		}
		if err := o.Validate(); err != nil {
			return LotReport{Status: StatusFailure, Detail: err.Error(), TotalProfit: decimal.Zero, Algorithm: AlgorithmClosestPrice}
		}
		filled++
		g := groups[o.Ticker]
		if g == nil {
			g = &legs{}
			groups[o.Ticker] = g
		}
		l := &lot{order: o, price: o.EffectivePrice(), remaining: o.Quantity}
		if o.Side == types.SideBuy {
			g.buys = append(g.buys, l)
		} else {
			g.sells = append(g.sells, l)
		}
	}

	report := LotReport{
		Status:      StatusSuccess,
		TotalProfit: decimal.Zero,
		Tickers:     make([]TickerLots, 0, len(groups)),
		TradeCount:  filled,
		Algorithm:   AlgorithmClosestPrice,
	}

	for ticker, g := range groups {
		tl := matchTicker(ticker, g.buys, g.sells)
		report.TotalProfit = report.TotalProfit.Add(tl.Profit)
		report.MatchedTrades += len(tl.Matches)
		report.Tickers = append(report.Tickers, tl)
	}

	sort.SliceStable(report.Tickers, func(i, j int) bool {
		a, b := report.Tickers[i], report.Tickers[j]
		if c := a.Profit.Cmp(b.Profit); c != 0 {
			return c > 0
		}
		return a.Ticker < b.Ticker
	})
	report.TotalProfit = report.TotalProfit.Round(currencyPlaces)
	return report
}

func matchTicker(ticker string, buys, sells []*lot) TickerLots {
	sort.SliceStable(buys, func(i, j int) bool {
		return buys[i].order.CreatedAt.Before(buys[j].order.CreatedAt)
	})
	sort.SliceStable(sells, func(i, j int) bool {
		return sells[i].price.GreaterThan(sells[j].price)
	})

	tl := TickerLots{
		Ticker:        ticker,
		BuyOrders:     len(buys),
		SellOrders:    len(sells),
		BuyShares:     decimal.Zero,
		SellShares:    decimal.Zero,
		MatchedShares: decimal.Zero,
		Fees:          decimal.Zero,
		Profit:        decimal.Zero,
		Matches:       []Match{},
	}
	for _, b := range buys {
		tl.BuyShares = tl.BuyShares.Add(b.order.Quantity)
	}
	for _, s := range sells {
		tl.SellShares = tl.SellShares.Add(s.order.Quantity)
	}

	for _, b := range buys {
		for b.remaining.IsPositive() {
			s := closestSell(b, sells)
			if s == nil {
				break
			}
			qty := decimal.Min(b.remaining, s.remaining)

			gross := s.price.Sub(b.price).Mul(qty)
			fees := b.order.Fees.Mul(qty).Div(b.order.Quantity).
				Add(s.order.Fees.Mul(qty).Div(s.order.Quantity))
			m := Match{
				BuyID:     b.order.ID,
				SellID:    s.order.ID,
				Quantity:  qty,
				BuyPrice:  b.price,
				SellPrice: s.price,
				Fees:      fees.Round(currencyPlaces),
				Profit:    gross.Sub(fees).Round(currencyPlaces),
			}
			tl.Matches = append(tl.Matches, m)
			tl.MatchedShares = tl.MatchedShares.Add(qty)
			tl.Fees = tl.Fees.Add(m.Fees)
			tl.Profit = tl.Profit.Add(m.Profit)

			b.remaining = b.remaining.Sub(qty)
			s.remaining = s.remaining.Sub(qty)
		}
	}

	tl.AvgProfitPerShare = decimal.Zero
	if tl.MatchedShares.IsPositive() {
		tl.AvgProfitPerShare = tl.Profit.Div(tl.MatchedShares).Round(currencyPlaces)
	}
	tl.Profit = tl.Profit.Round(currencyPlaces)
	return tl
}

// closestSell returns the open sell created after b with the smallest price
// distance, or nil. Ties keep the earlier entry in sells.
func closestSell(b *lot, sells []*lot) *lot {
	var best *lot
	var bestDiff decimal.Decimal
	for _, s := range sells {
		if !s.remaining.IsPositive() || !s.order.CreatedAt.After(b.order.CreatedAt) {
			continue
		}
		diff := s.price.Sub(b.price).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best, bestDiff = s, diff
		}
	}
	return best
}
