package eod

import (
	"bytes"
	"testing"

	"brokerage-mcp/internal/pnl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, "2024-05-02", pnl.Estimate(sample())))

	out := buf.String()
	assert.Contains(t, out, "Day-trade profit estimate for 2024-05-02")
	assert.Contains(t, out, "AAPL")
	assert.Contains(t, out, "no_buys")
	assert.Contains(t, out, "Total profit: 100.00 (3 filled orders)")
}

func TestWriteTextFailure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, "2024-05-02", pnl.Failure("Too many requests")))
	assert.Equal(t, "Day-trade estimate for 2024-05-02 failed: Too many requests\n", buf.String())
}

func TestWriteLotsText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLotsText(&buf, "2024-05-02", pnl.MatchLots(sample())))

	out := buf.String()
	assert.Contains(t, out, "closest_price_matching")
	assert.Contains(t, out, "Total profit: 100.00 (1 matches across 3 filled orders)")
}
