package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/tradelog"
	"brokerage-mcp/internal/types"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBroker struct {
	mu sync.Mutex

	session   types.Session
	quote     types.Quote
	price     float64
	inst      types.Instrument
	orders    []types.Order
	open      []types.Order
	positions []types.Position
	portfolio types.Portfolio
	err       error

	placed    []types.OrderReq
	cancelled []string
	loggedOut bool
}

var _ interfaces.Broker = (*fakeBroker)(nil)

func (f *fakeBroker) LoginURL() string {
	return "https://kite.zerodha.com/connect/login?v=3&api_key=key"
}

func (f *fakeBroker) Login(_ context.Context, token string) (types.Session, error) {
	if f.err != nil {
		return types.Session{}, f.err
	}
	s := f.session
	s.AccessToken = "access-" + token
	return s, nil
}

func (f *fakeBroker) Logout(context.Context) error {
	f.loggedOut = true
	return f.err
}

func (f *fakeBroker) Quote(_ context.Context, ticker string) (types.Quote, error) {
	if f.err != nil {
		return types.Quote{}, f.err
	}
	q := f.quote
	q.Ticker = ticker
	return q, nil
}

func (f *fakeBroker) LatestPrice(context.Context, string) (float64, error) {
	return f.price, f.err
}

func (f *fakeBroker) Instrument(_ context.Context, ticker string) (types.Instrument, error) {
	if f.err != nil {
		return types.Instrument{}, f.err
	}
	in := f.inst
	in.Ticker = ticker
	return in, nil
}

func (f *fakeBroker) PlaceOrder(_ context.Context, req types.OrderReq) (types.OrderResp, error) {
	if f.err != nil {
		return types.OrderResp{}, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	return types.OrderResp{
		OrderID:   "250101000000001",
		Status:    "PUT ORDER REQ RECEIVED",
		CreatedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
	}, nil
}

func (f *fakeBroker) CancelOrder(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, id)
	return nil
}

func (f *fakeBroker) OpenOrders(context.Context) ([]types.Order, error) {
	return f.open, f.err
}

func (f *fakeBroker) OrdersByDate(context.Context, string) ([]types.Order, error) {
	return f.orders, f.err
}

func (f *fakeBroker) Positions(context.Context) ([]types.Position, error) {
	return f.positions, f.err
}

func (f *fakeBroker) Portfolio(context.Context) (types.Portfolio, error) {
	return f.portfolio, f.err
}

func connect(t *testing.T, b interfaces.Broker, opts Options) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	st, ct := mcp.NewInMemoryTransports()
	ss, err := New(b, opts).MCP().Connect(ctx, st, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	cs, err := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil).Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any, out any) *mcp.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	require.NoError(t, json.Unmarshal([]byte(text.Text), out))
	return res
}

func readJSON(t *testing.T, cs *mcp.ClientSession, uri string, out any) {
	t.Helper()
	res, err := cs.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: uri})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, jsonMIME, res.Contents[0].MIMEType)
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), out))
}

func order(id, ticker string, side types.Side, state types.OrderState, qty, price float64, minute int) types.Order {
	return types.Order{
		ID:        id,
		Ticker:    ticker,
		Side:      side,
		State:     state,
		Type:      types.OrderTypeLimit,
		Quantity:  decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
		CreatedAt: time.Date(2025, 5, 2, 9, 15+minute, 0, 0, time.UTC),
	}
}

func TestListTools(t *testing.T) {
	cs := connect(t, &fakeBroker{}, Options{})

	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{
		"analyze_trading_profit",
		"buy_stock_limit_order",
		"buy_stock_market_order",
		"cancel_order",
		"estimate_day_trade_profit",
		"get_latest_price",
		"get_login_url",
		"get_open_orders",
		"get_orders_by_date",
		"get_portfolio",
		"get_positions",
		"get_stock_quote",
		"login",
		"logout",
		"sell_stock_limit_order",
		"sell_stock_market_order",
	}, names)
}

func TestAuthTools(t *testing.T) {
	expires := time.Date(2025, 5, 3, 6, 0, 0, 0, time.FixedZone("IST", 19800))
	b := &fakeBroker{session: types.Session{UserID: "AB1234", UserName: "Asha", ExpiresAt: expires}}
	cs := connect(t, b, Options{})

	var url LoginURLOutput
	call(t, cs, "get_login_url", nil, &url)
	assert.Equal(t, StatusSuccess, url.Status)
	assert.Contains(t, url.LoginURL, "api_key=key")

	var login LoginOutput
	res := call(t, cs, "login", map[string]any{"request_token": " tok "}, &login)
	assert.False(t, res.IsError)
	assert.Equal(t, StatusSuccess, login.Status)
	assert.Equal(t, "AB1234", login.UserID)
	assert.Equal(t, "Logged in as Asha", login.Message)
	assert.Equal(t, "2025-05-03T06:00:00+05:30", login.ExpiresAt)

	var failed errorOutput
	res = call(t, cs, "login", map[string]any{"request_token": "  "}, &failed)
	assert.True(t, res.IsError)
	assert.Equal(t, StatusError, failed.Status)
	assert.Contains(t, failed.Message, "request_token is required")

	var out MessageOutput
	call(t, cs, "logout", nil, &out)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.True(t, b.loggedOut)
}

func TestMissingRequiredArgument(t *testing.T) {
	cs := connect(t, &fakeBroker{}, Options{})

	_, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "get_stock_quote",
		Arguments: map[string]any{},
	})
	assert.Error(t, err)
}

func TestMarketTools(t *testing.T) {
	b := &fakeBroker{
		quote: types.Quote{LastPrice: 1510.5, BidPrice: 1510.2, AskPrice: 1510.8, PreviousClose: 1500, Volume: 120000,
			UpdatedAt: time.Date(2025, 5, 2, 15, 29, 59, 0, time.UTC)},
		price: 1510.5,
	}
	cs := connect(t, b, Options{})

	var q QuoteOutput
	call(t, cs, "get_stock_quote", map[string]any{"ticker": "infy"}, &q)
	assert.Equal(t, StatusSuccess, q.Status)
	assert.Equal(t, "INFY", q.Ticker)
	assert.Equal(t, 1510.5, q.LastTradePrice)
	assert.Equal(t, 1510.8, q.AskPrice)
	assert.Equal(t, int64(120000), q.Volume)
	assert.Equal(t, "2025-05-02T15:29:59Z", q.UpdatedAt)

	var p PriceOutput
	call(t, cs, "get_latest_price", map[string]any{"ticker": "INFY"}, &p)
	assert.Equal(t, 1510.5, p.Price)

	b.price = 0
	var noPrice errorOutput
	res := call(t, cs, "get_latest_price", map[string]any{"ticker": "INFY"}, &noPrice)
	assert.True(t, res.IsError)
	assert.Equal(t, "no price data found for INFY", noPrice.Message)

	b.err = errors.New("Incorrect `api_key` or `access_token`.")
	var failed errorOutput
	res = call(t, cs, "get_stock_quote", map[string]any{"ticker": "INFY"}, &failed)
	assert.True(t, res.IsError)
	assert.Equal(t, "failed to get quote for INFY: Incorrect `api_key` or `access_token`.", failed.Message)
}

func TestOrderTools(t *testing.T) {
	b := &fakeBroker{}
	journal := tradelog.New(t.TempDir())
	cs := connect(t, b, Options{Mode: "DRY_RUN", Journal: journal})

	var out OrderOutput
	call(t, cs, "buy_stock_market_order", map[string]any{"ticker": "infy", "quantity": 10}, &out)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, "250101000000001", out.OrderID)
	assert.Equal(t, "buy", out.Side)
	assert.Equal(t, "market", out.Type)
	assert.Equal(t, "INFY", out.Ticker)

	call(t, cs, "sell_stock_limit_order", map[string]any{
		"ticker": "TCS", "quantity": 5, "price": 3550.5, "time_in_force": "ioc", "extended_hours": true,
	}, &out)
	assert.Equal(t, "sell", out.Side)
	assert.Equal(t, 3550.5, out.Price)

	require.Len(t, b.placed, 2)
	assert.Equal(t, types.OrderReq{
		Ticker: "TCS", Side: types.SideSell, Type: types.OrderTypeLimit, Quantity: 5,
		LimitPrice: 3550.5, TimeInForce: "ioc", ExtendedHours: true, Tag: orderTag,
	}, b.placed[1])

	entries, err := journal.Read(time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "INFY", entries[0].Ticker)
	assert.Equal(t, "DRY_RUN", entries[0].Mode)
	assert.Equal(t, 3550.5, entries[1].LimitPrice)

	t.Run("rejected before reaching the broker", func(t *testing.T) {
		cases := []struct {
			tool string
			args map[string]any
			msg  string
		}{
			{"buy_stock_limit_order", map[string]any{"ticker": "INFY", "quantity": 1, "price": 0}, "price must be positive"},
			{"sell_stock_market_order", map[string]any{"ticker": "INFY", "quantity": 0}, "quantity must be positive"},
			{"buy_stock_market_order", map[string]any{"ticker": " ", "quantity": 1}, "ticker is required"},
		}
		for _, tc := range cases {
			var failed errorOutput
			res := call(t, cs, tc.tool, tc.args, &failed)
			assert.True(t, res.IsError, tc.tool)
			assert.Contains(t, failed.Message, tc.msg)
		}
		assert.Len(t, b.placed, 2)
	})

	t.Run("cancel", func(t *testing.T) {
		var c CancelOutput
		call(t, cs, "cancel_order", map[string]any{"order_id": "250101000000001"}, &c)
		assert.Equal(t, StatusSuccess, c.Status)
		assert.Equal(t, []string{"250101000000001"}, b.cancelled)
	})
}

func TestPortfolioTools(t *testing.T) {
	b := &fakeBroker{
		positions: []types.Position{{Ticker: "INFY", Exchange: "NSE", Product: "MIS", Quantity: 10, AverageBuyPrice: 1500.25, LastPrice: 1510, PnL: 97.5}},
		portfolio: types.Portfolio{
			Equity: 100000, Cash: 85000,
			Holdings: []types.Holding{{Ticker: "TCS", Quantity: 2, LastPrice: 3500}},
		},
		open: []types.Order{order("1", "INFY", types.SideBuy, types.StateQueued, 5, 1490, 0)},
	}
	cs := connect(t, b, Options{})

	var pos PositionsOutput
	call(t, cs, "get_positions", nil, &pos)
	require.Len(t, pos.Positions, 1)
	assert.Equal(t, 15002.5, pos.Positions[0].CostBasis)

	var pf PortfolioOutput
	call(t, cs, "get_portfolio", nil, &pf)
	assert.Equal(t, 7000.0, pf.HoldingsValue)
	assert.Equal(t, 1, pf.HoldingsCount)
	assert.Equal(t, 0, pf.PositionsCount)

	var open OpenOrdersOutput
	call(t, cs, "get_open_orders", nil, &open)
	require.Len(t, open.Orders, 1)
	assert.Equal(t, "queued", open.Orders[0].State)
	require.NotNil(t, open.Orders[0].Price)
	assert.Equal(t, 1490.0, *open.Orders[0].Price)
	assert.Nil(t, open.Orders[0].AveragePrice)

	b.positions = nil
	call(t, cs, "get_positions", nil, &pos)
	assert.NotNil(t, pos.Positions)
	assert.Empty(t, pos.Positions)
}

func TestOrdersByDate(t *testing.T) {
	market := order("2", "INFY", types.SideSell, types.StateFilled, 5, 0, 10)
	market.Type = types.OrderTypeMarket
	market.AveragePrice = decimal.NewNullDecimal(decimal.NewFromFloat(1512.4))
	b := &fakeBroker{orders: []types.Order{market, order("1", "INFY", types.SideBuy, types.StateFilled, 5, 1500, 0)}}
	cs := connect(t, b, Options{})

	var out OrdersByDateOutput
	call(t, cs, "get_orders_by_date", map[string]any{"date": "2025-05-02"}, &out)
	assert.Equal(t, "2025-05-02", out.Date)
	assert.Equal(t, 2, out.OrdersCount)
	assert.Nil(t, out.Orders[0].Price)
	require.NotNil(t, out.Orders[0].AveragePrice)
	assert.Equal(t, 1512.4, *out.Orders[0].AveragePrice)
	assert.Equal(t, "2025-05-02T09:25:00Z", out.Orders[0].CreatedAt)

	b.err = errors.New("invalid date")
	var failed errorOutput
	res := call(t, cs, "get_orders_by_date", map[string]any{"date": "02-05-2025"}, &failed)
	assert.True(t, res.IsError)
	assert.Equal(t, "failed to get orders for date 02-05-2025: invalid date", failed.Message)
}

func TestEstimateDayTradeProfit(t *testing.T) {
	b := &fakeBroker{orders: []types.Order{
		order("1", "INFY", types.SideBuy, types.StateFilled, 10, 100, 0),
		order("2", "INFY", types.SideBuy, types.StateFilled, 10, 110, 1),
		order("3", "INFY", types.SideSell, types.StateFilled, 15, 120, 2),
		order("4", "TCS", types.SideSell, types.StateFilled, 3, 3500, 3),
		order("5", "INFY", types.SideSell, types.StateCancelled, 5, 125, 4),
	}}
	cs := connect(t, b, Options{})

	var out EstimateOutput
	res := call(t, cs, "estimate_day_trade_profit", map[string]any{"date": "2025-05-02"}, &out)
	assert.False(t, res.IsError)
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, 225.0, out.Profit)
	assert.Equal(t, 4, out.FilledOrders)
	require.Len(t, out.Tickers, 2)
	assert.Equal(t, "INFY", out.Tickers[0].Ticker)
	assert.Equal(t, 105.0, out.Tickers[0].AvgBuyPrice)
	assert.True(t, out.Tickers[0].Matched)
	assert.Equal(t, "no_buys", out.Tickers[1].SkipReason)

	t.Run("upstream failure is passed through", func(t *testing.T) {
		b.err = errors.New("Too many requests")
		var failed EstimateOutput
		res := call(t, cs, "estimate_day_trade_profit", map[string]any{"date": "2025-05-02"}, &failed)
		assert.False(t, res.IsError)
		assert.Equal(t, "failure", failed.Status)
		assert.Equal(t, "Too many requests", failed.Detail)
		assert.Zero(t, failed.Profit)
		assert.Empty(t, failed.Tickers)
	})
}

func TestAnalyzeTradingProfit(t *testing.T) {
	buy := order("b1", "INFY", types.SideBuy, types.StateFilled, 10, 100, 0)
	buy.Fees = decimal.NewFromInt(1)
	sell := order("s1", "INFY", types.SideSell, types.StateFilled, 10, 110, 5)
	sell.Fees = decimal.NewFromInt(1)
	b := &fakeBroker{orders: []types.Order{sell, buy}}
	cs := connect(t, b, Options{})

	var out ProfitAnalysisOutput
	call(t, cs, "analyze_trading_profit", map[string]any{"date": "2025-05-02"}, &out)
	assert.Equal(t, StatusSuccess, out.Status)
	assert.Equal(t, 98.0, out.TotalProfit)
	assert.Equal(t, 1, out.MatchedTrades)
	assert.Equal(t, 2, out.TradeCount)
	assert.Equal(t, "closest_price_matching", out.Algorithm)
	require.Len(t, out.TickerResults, 1)
	require.Len(t, out.TickerResults[0].Matches, 1)
	m := out.TickerResults[0].Matches[0]
	assert.Equal(t, "b1", m.BuyID)
	assert.Equal(t, "s1", m.SellID)
	assert.Equal(t, 2.0, m.Fees)
	assert.Equal(t, 9.8, out.TickerResults[0].AvgProfitPerShare)

	b.orders = []types.Order{order("x", "", types.SideBuy, types.StateFilled, 1, 1, 0)}
	var failed errorOutput
	res := call(t, cs, "analyze_trading_profit", map[string]any{"date": "2025-05-02"}, &failed)
	assert.True(t, res.IsError)
	assert.Contains(t, failed.Message, "invalid order")
}

func TestResources(t *testing.T) {
	b := &fakeBroker{
		inst:  types.Instrument{Name: "INFOSYS", Exchange: "NSE", Segment: "NSE", InstrumentType: "EQ", TickSize: 0.05, LotSize: 1},
		quote: types.Quote{LastPrice: 1510.5, UpperCircuit: 1661.55},
		portfolio: types.Portfolio{
			Equity: 100000, Cash: 85000,
			Holdings:  []types.Holding{{Ticker: "TCS", Quantity: 2, LastPrice: 3500, PnL: 120}},
			Positions: []types.Position{{Ticker: "INFY", PnL: -20}},
		},
	}
	journal := tradelog.New(t.TempDir())
	cs := connect(t, b, Options{Journal: journal})

	t.Run("stock info", func(t *testing.T) {
		var info StockInfo
		readJSON(t, cs, "brokerage://stocks/infy/info", &info)
		assert.Equal(t, "INFY", info.Ticker)
		assert.Equal(t, "INFOSYS", info.Name)
		assert.Equal(t, 0.05, info.TickSize)
		assert.Equal(t, 1661.55, info.UpperCircuit)
	})

	t.Run("portfolio summary", func(t *testing.T) {
		var sum PortfolioSummary
		readJSON(t, cs, "brokerage://portfolio/summary", &sum)
		assert.Equal(t, 92000.0, sum.TotalAssets)
		assert.Equal(t, 100.0, sum.UnrealizedPnL)
		assert.Equal(t, 1, sum.PositionsCount)
	})

	t.Run("account history", func(t *testing.T) {
		require.NoError(t, journal.Append(tradelog.Entry{OrderID: "1", Ticker: "INFY", Side: "buy", Type: "market", Quantity: 10, Status: "COMPLETE"}))
		require.NoError(t, journal.Append(tradelog.Entry{OrderID: "2", Ticker: "INFY", Side: "sell", Type: "limit", Quantity: 4, LimitPrice: 1520, Status: "OPEN"}))
		require.NoError(t, journal.Append(tradelog.Entry{Time: time.Now().AddDate(0, -2, 0), OrderID: "0", Ticker: "TCS", Side: "buy", Quantity: 1}))

		var h AccountHistory
		readJSON(t, cs, "brokerage://account/history/week", &h)
		assert.Equal(t, "week", h.Timespan)
		assert.Equal(t, 2, h.OrdersCount)
		require.Len(t, h.Tickers, 1)
		assert.Equal(t, TickerActivity{Ticker: "INFY", BuyOrders: 1, SellOrders: 1, BuyQuantity: 10, SellQuantity: 4}, h.Tickers[0])

		readJSON(t, cs, "brokerage://account/history/all", &h)
		assert.Equal(t, 3, h.OrdersCount)
		assert.Equal(t, "TCS", h.Orders[0].Ticker)
	})

	t.Run("invalid timespan", func(t *testing.T) {
		var e resourceError
		readJSON(t, cs, "brokerage://account/history/decade", &e)
		assert.Contains(t, e.Error, "invalid timespan")
	})

	t.Run("upstream failure", func(t *testing.T) {
		b.err = errors.New("gateway timeout")
		defer func() { b.err = nil }()
		var e resourceError
		readJSON(t, cs, "brokerage://portfolio/summary", &e)
		assert.Equal(t, "failed to get portfolio summary: gateway timeout", e.Error)
	})
}

func TestAccountHistoryWithoutJournal(t *testing.T) {
	cs := connect(t, &fakeBroker{}, Options{})

	var e resourceError
	readJSON(t, cs, "brokerage://account/history/day", &e)
	assert.Contains(t, e.Error, "trade journal is disabled")
}

func TestPrompts(t *testing.T) {
	cs := connect(t, &fakeBroker{}, Options{})
	ctx := context.Background()

	res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: "stock_analysis", Arguments: map[string]string{"ticker": "reliance"}})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.Role("user"), res.Messages[0].Role)
	text := res.Messages[0].Content.(*mcp.TextContent).Text
	assert.Contains(t, text, "analyze RELIANCE")

	for _, name := range []string{"trading_assistant", "portfolio_review"} {
		res, err := cs.GetPrompt(ctx, &mcp.GetPromptParams{Name: name})
		require.NoError(t, err, name)
		assert.NotEmpty(t, res.Messages, name)
	}
}
