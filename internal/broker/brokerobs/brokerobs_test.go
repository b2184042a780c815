package brokerobs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/metrics"
	"brokerage-mcp/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// stubBroker implements only the methods exercised here.
type stubBroker struct {
	interfaces.Broker
	err error
}

func (s *stubBroker) PlaceOrder(_ context.Context, req types.OrderReq) (types.OrderResp, error) {
	if s.err != nil {
		return types.OrderResp{}, s.err
	}
	return types.OrderResp{OrderID: "SIM-1", Status: "SIMULATED"}, nil
}

func (s *stubBroker) OrdersByDate(context.Context, string) ([]types.Order, error) {
	return []types.Order{{ID: "1"}, {ID: "2"}}, s.err
}

func observe(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.InitWithCore(core, false)
	return logs
}

func TestPlaceOrderLogsTrade(t *testing.T) {
	logs := observe(t)
	brk := Wrap(&stubBroker{})

	resp, err := brk.PlaceOrder(context.Background(), types.OrderReq{
		Ticker: "INFY", Side: types.SideBuy, Type: types.OrderTypeMarket, Quantity: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "SIM-1", resp.OrderID)

	trades := logs.FilterMessage("Order placed").All()
	require.Len(t, trades, 1)
	fields := trades[0].ContextMap()
	assert.Equal(t, "TRADE", fields["type"])
	assert.Equal(t, "INFY", fields["ticker"])
	assert.Equal(t, "SIM-1", fields["order_id"])

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `brokerage_mcp_broker_calls_total{method="PlaceOrder",status="ok"}`)
	assert.Contains(t, rec.Body.String(), `brokerage_mcp_orders_placed_total{side="buy",type="market"}`)
}

func TestErrorsPassThrough(t *testing.T) {
	logs := observe(t)
	boom := errors.New("Too many requests")
	brk := Wrap(&stubBroker{err: boom})

	_, err := brk.PlaceOrder(context.Background(), types.OrderReq{Ticker: "INFY", Side: types.SideSell, Quantity: 1})
	assert.Same(t, boom, err)

	orders, err := brk.OrdersByDate(context.Background(), "2025-05-02")
	assert.Same(t, boom, err)
	assert.Nil(t, orders)

	failures := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, failures, 2)
	assert.Equal(t, "Failed to place order", failures[0].Message)
	assert.Equal(t, "Failed to fetch orders", failures[1].Message)
}
