package kite

import (
	"errors"
	"sync"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

type fakeAPI struct {
	mu sync.Mutex

	token       string
	session     kiteconnect.UserSession
	quotes      kiteconnect.Quote
	ltp         kiteconnect.QuoteLTP
	instruments kiteconnect.Instruments
	orders      kiteconnect.Orders
	positions   kiteconnect.Positions
	holdings    kiteconnect.Holdings
	margins     kiteconnect.AllMargins
	err         error

	placed          []kiteconnect.OrderParams
	placedVarieties []string
	cancelled       []string
	instrumentCalls int
	invalidated     bool

	// ltpEntered and ltpRelease, when set, park GetLTP mid-call.
	ltpEntered    chan struct{}
	ltpRelease    chan struct{}
	inFlight      int
	swappedInCall bool
}

var _ API = (*fakeAPI)(nil)

var errNoToken = errors.New("TokenException: missing access token")

func (f *fakeAPI) authed() error {
	if f.err != nil {
		return f.err
	}
	if f.token == "" {
		return errNoToken
	}
	return nil
}

func (f *fakeAPI) SetAccessToken(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.swappedInCall = f.swappedInCall || f.inFlight > 0
	f.token = t
}

func (f *fakeAPI) GetLoginURL() string {
	return "https://kite.zerodha.com/connect/login?api_key=key&v=3"
}

func (f *fakeAPI) GenerateSession(requestToken, apiSecret string) (kiteconnect.UserSession, error) {
	if requestToken != "good" || apiSecret != "secret" {
		return kiteconnect.UserSession{}, errors.New("TokenException: invalid request token")
	}
	// The real client installs the new token on success.
	f.SetAccessToken(f.session.UserSessionTokens.AccessToken)
	return f.session, nil
}

func (f *fakeAPI) InvalidateAccessToken() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = true
	return true, nil
}

func (f *fakeAPI) GetQuote(...string) (kiteconnect.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quotes, f.authed()
}

func (f *fakeAPI) GetLTP(...string) (kiteconnect.QuoteLTP, error) {
	f.mu.Lock()
	f.inFlight++
	f.mu.Unlock()
	if f.ltpEntered != nil {
		f.ltpEntered <- struct{}{}
		<-f.ltpRelease
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	return f.ltp, f.authed()
}

func (f *fakeAPI) GetInstrumentsByExchange(string) (kiteconnect.Instruments, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instrumentCalls++
	return f.instruments, f.authed()
}

func (f *fakeAPI) PlaceOrder(variety string, p kiteconnect.OrderParams) (kiteconnect.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authed(); err != nil {
		return kiteconnect.OrderResponse{}, err
	}
	f.placed = append(f.placed, p)
	f.placedVarieties = append(f.placedVarieties, variety)
	return kiteconnect.OrderResponse{OrderID: "240502000000001"}, nil
}

func (f *fakeAPI) CancelOrder(variety, orderID string, _ *string) (kiteconnect.OrderResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.authed(); err != nil {
		return kiteconnect.OrderResponse{}, err
	}
	f.cancelled = append(f.cancelled, variety+"/"+orderID)
	return kiteconnect.OrderResponse{OrderID: orderID}, nil
}

func (f *fakeAPI) GetOrders() (kiteconnect.Orders, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.orders, f.authed()
}

func (f *fakeAPI) GetPositions() (kiteconnect.Positions, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.positions, f.authed()
}

func (f *fakeAPI) GetHoldings() (kiteconnect.Holdings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.holdings, f.authed()
}

func (f *fakeAPI) GetUserMargins() (kiteconnect.AllMargins, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.margins, f.authed()
}
