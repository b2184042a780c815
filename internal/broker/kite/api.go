package kite

import (
	"net/http"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// API is the part of the Kite Connect client the broker uses.
type API interface {
	SetAccessToken(accessToken string)
	GetLoginURL() string
	GenerateSession(requestToken string, apiSecret string) (kiteconnect.UserSession, error)
	InvalidateAccessToken() (bool, error)

	GetQuote(instruments ...string) (kiteconnect.Quote, error)
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)

	PlaceOrder(variety string, orderParams kiteconnect.OrderParams) (kiteconnect.OrderResponse, error)
	CancelOrder(variety string, orderID string, parentOrderID *string) (kiteconnect.OrderResponse, error)
	GetOrders() (kiteconnect.Orders, error)

	GetPositions() (kiteconnect.Positions, error)
	GetHoldings() (kiteconnect.Holdings, error)
	GetUserMargins() (kiteconnect.AllMargins, error)
}

var _ API = (*kiteconnect.Client)(nil)

// NewClient returns a Kite Connect client with a bounded HTTP timeout.
func NewClient(apiKey string, timeout time.Duration) *kiteconnect.Client {
	kc := kiteconnect.New(apiKey)
	kc.SetHTTPClient(&http.Client{Timeout: timeout})
	return kc
}
