package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveTool(t *testing.T) {
	before := testutil.ToFloat64(toolCalls.WithLabelValues("get_positions", StatusError))
	ObserveTool("get_positions", false, 15*time.Millisecond)
	ObserveTool("get_positions", true, 5*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(toolCalls.WithLabelValues("get_positions", StatusError)))
	assert.GreaterOrEqual(t, testutil.ToFloat64(toolCalls.WithLabelValues("get_positions", StatusOK)), 1.0)
}

func TestObserveBroker(t *testing.T) {
	ObserveBroker("Quote", errors.New("boom"), time.Millisecond)
	ObserveBroker("Quote", nil, time.Millisecond)
	assert.GreaterOrEqual(t, testutil.ToFloat64(brokerCalls.WithLabelValues("Quote", StatusError)), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(brokerCalls.WithLabelValues("Quote", StatusOK)), 1.0)
}

func TestHandlerExposesMetrics(t *testing.T) {
	OrderPlaced("buy", "market")
	SetEstimatedProfit(42.5)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "brokerage_mcp_orders_placed_total"))
	assert.True(t, strings.Contains(body, "brokerage_mcp_pnl_estimated_day_trade_profit 42.5"))
}
