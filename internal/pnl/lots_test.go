package pnl

import (
	"testing"
	"time"

	"brokerage-mcp/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 5, 2, 9, 15, 0, 0, time.UTC)

func at(o types.Order, id string, minute int, fees float64) types.Order {
	o.ID = id
	o.CreatedAt = base.Add(time.Duration(minute) * time.Minute)
	o.Fees = decimal.NewFromFloat(fees)
	return o
}

func TestMatchLotsSingleRoundTrip(t *testing.T) {
	rep := MatchLots([]types.Order{
		at(filled("AAPL", types.SideBuy, 10, 100), "b1", 0, 1),
		at(filled("AAPL", types.SideSell, 10, 110), "s1", 5, 1),
	})
	require.Equal(t, StatusSuccess, rep.Status)
	require.Len(t, rep.Tickers, 1)

	tl := rep.Tickers[0]
	require.Len(t, tl.Matches, 1)
	assert.Equal(t, "b1", tl.Matches[0].BuyID)
	assert.Equal(t, "s1", tl.Matches[0].SellID)
	assert.Equal(t, "2.00", tl.Fees.StringFixed(2))
	assert.Equal(t, "98.00", tl.Profit.StringFixed(2))
	assert.Equal(t, "9.80", tl.AvgProfitPerShare.StringFixed(2))
	assert.Equal(t, "98.00", rep.TotalProfit.StringFixed(2))
	assert.Equal(t, 1, rep.MatchedTrades)
	assert.Equal(t, 2, rep.TradeCount)
	assert.Equal(t, AlgorithmClosestPrice, rep.Algorithm)
}

func TestMatchLotsPrefersClosestLaterSell(t *testing.T) {
	rep := MatchLots([]types.Order{
		at(filled("INFY", types.SideSell, 5, 90), "early", 0, 0),
		at(filled("INFY", types.SideBuy, 5, 100), "b1", 1, 0),
		at(filled("INFY", types.SideSell, 5, 120), "far", 2, 0),
		at(filled("INFY", types.SideSell, 5, 101), "near", 3, 0),
	})
	require.Equal(t, StatusSuccess, rep.Status)
	tl := rep.Tickers[0]
	require.Len(t, tl.Matches, 1)
	assert.Equal(t, "near", tl.Matches[0].SellID)
	assert.Equal(t, "5.00", tl.Profit.StringFixed(2))
	assert.Equal(t, "5", tl.MatchedShares.String())
	assert.Equal(t, "15", tl.SellShares.String())
}

func TestMatchLotsSplitsQuantities(t *testing.T) {
	rep := MatchLots([]types.Order{
		at(filled("TCS", types.SideBuy, 10, 100), "b1", 0, 2),
		at(filled("TCS", types.SideSell, 4, 105), "s1", 1, 0.4),
		at(filled("TCS", types.SideSell, 6, 103), "s2", 2, 0.6),
	})
	tl := rep.Tickers[0]
	require.Len(t, tl.Matches, 2)
	// 103 is closer to 100 than 105.
	assert.Equal(t, "s2", tl.Matches[0].SellID)
	assert.Equal(t, "6", tl.Matches[0].Quantity.String())
	assert.Equal(t, "s1", tl.Matches[1].SellID)
	// gross 18 + 20, fees 2 + 0.4 + 0.6
	assert.Equal(t, "3.00", tl.Fees.StringFixed(2))
	assert.Equal(t, "35.00", tl.Profit.StringFixed(2))
}

func TestMatchLotsSortsTickersByProfit(t *testing.T) {
	rep := MatchLots([]types.Order{
		at(filled("LOSS", types.SideBuy, 1, 50), "a", 0, 0),
		at(filled("LOSS", types.SideSell, 1, 40), "b", 1, 0),
		at(filled("GAIN", types.SideBuy, 1, 50), "c", 0, 0),
		at(filled("GAIN", types.SideSell, 1, 70), "d", 1, 0),
		at(filled("FLAT", types.SideBuy, 1, 50), "e", 0, 0),
	})
	require.Len(t, rep.Tickers, 3)
	assert.Equal(t, "GAIN", rep.Tickers[0].Ticker)
	assert.Equal(t, "FLAT", rep.Tickers[1].Ticker)
	assert.Equal(t, "LOSS", rep.Tickers[2].Ticker)
	assert.Equal(t, "10.00", rep.TotalProfit.StringFixed(2))
}

func TestMatchLotsMalformed(t *testing.T) {
	rep := MatchLots([]types.Order{filled("AAPL", types.SideBuy, -1, 10)})
	assert.Equal(t, StatusFailure, rep.Status)
	assert.NotEmpty(t, rep.Detail)
	assert.Empty(t, rep.Tickers)
}
