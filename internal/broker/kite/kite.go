// Package kite implements the brokerage contract on top of the Kite Connect
// REST API.
package kite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"brokerage-mcp/internal/interfaces"
	"brokerage-mcp/internal/logger"
	"brokerage-mcp/internal/session"
	"brokerage-mcp/internal/types"

	"github.com/google/uuid"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	ModeLive   = "LIVE"
	ModeDryRun = "DRY_RUN"

	DateLayout = "2006-01-02"
)

var (
	ErrInvalidDate            = errors.New("invalid date, expected YYYY-MM-DD")
	ErrUnknownTicker          = errors.New("unknown ticker")
	ErrUnsupportedTimeInForce = errors.New("unsupported time in force")
	ErrMissingSecret          = errors.New("missing Kite API secret")
)

type Params struct {
	Mode          string
	APIKey        string
	APISecret     string
	Exchange      string
	Product       string
	RateLimit     int
	InstrumentTTL time.Duration
}

type Broker struct {
	p           Params
	api         API
	sessions    *session.Manager
	limiter     *rate.Limiter
	instruments *instrumentCache
	now         func() time.Time

	// tokenMu is read-held for the duration of every API call and
	// write-held while the client's access token changes.
	tokenMu      sync.RWMutex
	appliedToken string
}

var _ interfaces.Broker = (*Broker)(nil)

func New(p Params, api API, sessions *session.Manager) *Broker {
	if p.Exchange == "" {
		p.Exchange = "NSE"
	}
	if p.Product == "" {
		p.Product = kiteconnect.ProductCNC
	}
	if p.InstrumentTTL <= 0 {
		p.InstrumentTTL = 12 * time.Hour
	}
	b := &Broker{
		p:        p,
		api:      api,
		sessions: sessions,
		limiter:  NewRateLimiter(p.RateLimit),
		now:      time.Now,
	}
	b.instruments = newInstrumentCache(p.Exchange, p.InstrumentTTL, b.fetchInstruments)
	return b
}

func (b *Broker) DryRun() bool { return strings.EqualFold(b.p.Mode, ModeDryRun) }

// authorize makes sure the client carries the current session's token and
// returns with the token read-locked. Callers must invoke release once their
// API calls are done.
func (b *Broker) authorize(ctx context.Context) (func(), error) {
	sess, err := b.sessions.Current()
	if err != nil {
		return nil, err
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	b.tokenMu.RLock()
	if b.appliedToken == sess.AccessToken {
		return b.tokenMu.RUnlock, nil
	}
	b.tokenMu.RUnlock()

	b.setToken(sess.AccessToken)
	b.tokenMu.RLock()
	return b.tokenMu.RUnlock, nil
}

// setToken swaps the client's access token once no API call is in flight.
func (b *Broker) setToken(token string) {
	b.tokenMu.Lock()
	defer b.tokenMu.Unlock()
	if b.appliedToken != token {
		b.api.SetAccessToken(token)
		b.appliedToken = token
	}
}

// instrumentKey turns INFY or NSE:INFY into the exchange-qualified key.
func (b *Broker) instrumentKey(ticker string) (string, string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", "", fmt.Errorf("%w: empty ticker", ErrUnknownTicker)
	}
	if i := strings.IndexByte(t, ':'); i >= 0 {
		return t, t[i+1:], nil
	}
	return b.p.Exchange + ":" + t, t, nil
}

func (b *Broker) LoginURL() string {
	return b.api.GetLoginURL()
}

// Login exchanges the request token from the redirect for an access token and
// stores the resulting session.
func (b *Broker) Login(ctx context.Context, requestToken string) (types.Session, error) {
	if strings.TrimSpace(requestToken) == "" {
		return types.Session{}, errors.New("request token is required")
	}
	if b.p.APISecret == "" {
		return types.Session{}, ErrMissingSecret
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return types.Session{}, err
	}

	// GenerateSession installs the new token on the client itself.
	b.tokenMu.Lock()
	us, err := b.api.GenerateSession(requestToken, b.p.APISecret)
	if err == nil {
		b.appliedToken = us.UserSessionTokens.AccessToken
	}
	b.tokenMu.Unlock()
	if err != nil {
		return types.Session{}, fmt.Errorf("generate session: %w", err)
	}

	sess, err := b.sessions.Set(ctx, types.Session{
		APIKey:      b.p.APIKey,
		UserID:      us.UserProfile.UserID,
		UserName:    us.UserProfile.UserName,
		AccessToken: us.UserSessionTokens.AccessToken,
		LoginTime:   b.now(),
	})
	if err != nil {
		return sess, err
	}
	logger.Info(ctx, "Logged in", "user_id", sess.UserID, "expires_at", sess.ExpiresAt)
	return sess, nil
}

func (b *Broker) Logout(ctx context.Context) error {
	release, err := b.authorize(ctx)
	if err != nil {
		if errors.Is(err, session.ErrSessionExpired) {
			return b.sessions.Clear(ctx)
		}
		return err
	}
	_, err = b.api.InvalidateAccessToken()
	release()
	if err != nil {
		logger.Warn(ctx, "Invalidating access token failed, clearing local session anyway", "error", err)
	}

	b.setToken("")
	return b.sessions.Clear(ctx)
}

func (b *Broker) Quote(ctx context.Context, ticker string) (types.Quote, error) {
	key, symbol, err := b.instrumentKey(ticker)
	if err != nil {
		return types.Quote{}, err
	}
	release, err := b.authorize(ctx)
	if err != nil {
		return types.Quote{}, err
	}
	defer release()

	quotes, err := b.api.GetQuote(key)
	if err != nil {
		return types.Quote{}, fmt.Errorf("quote %s: %w", key, err)
	}
	q, ok := quotes[key]
	if !ok {
		return types.Quote{}, fmt.Errorf("%w: %s", ErrUnknownTicker, key)
	}

	return types.Quote{
		Ticker:        symbol,
		LastPrice:     float64(q.LastPrice),
		BidPrice:      float64(q.Depth.Buy[0].Price),
		AskPrice:      float64(q.Depth.Sell[0].Price),
		Open:          float64(q.OHLC.Open),
		High:          float64(q.OHLC.High),
		Low:           float64(q.OHLC.Low),
		PreviousClose: float64(q.OHLC.Close),
		NetChange:     float64(q.NetChange),
		Volume:        int64(q.Volume),
		LowerCircuit:  float64(q.LowerCircuitLimit),
		UpperCircuit:  float64(q.UpperCircuitLimit),
		UpdatedAt:     exchangeTime(q.Timestamp.Time),
	}, nil
}

func (b *Broker) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	key, _, err := b.instrumentKey(ticker)
	if err != nil {
		return 0, err
	}
	release, err := b.authorize(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	ltp, err := b.api.GetLTP(key)
	if err != nil {
		return 0, fmt.Errorf("ltp %s: %w", key, err)
	}
	q, ok := ltp[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTicker, key)
	}
	return float64(q.LastPrice), nil
}

func (b *Broker) Instrument(ctx context.Context, ticker string) (types.Instrument, error) {
	_, symbol, err := b.instrumentKey(ticker)
	if err != nil {
		return types.Instrument{}, err
	}
	return b.instruments.lookup(ctx, symbol)
}

func (b *Broker) fetchInstruments(ctx context.Context, exchange string) ([]types.Instrument, error) {
	release, err := b.authorize(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	list, err := b.api.GetInstrumentsByExchange(exchange)
	if err != nil {
		return nil, err
	}
	out := make([]types.Instrument, 0, len(list))
	for _, in := range list {
		out = append(out, toInstrument(in))
	}
	return out, nil
}

// orderParams validates req and builds the Kite variety and parameters.
func (b *Broker) orderParams(req types.OrderReq) (string, kiteconnect.OrderParams, error) {
	_, symbol, err := b.instrumentKey(req.Ticker)
	if err != nil {
		return "", kiteconnect.OrderParams{}, err
	}
	if !req.Side.Valid() {
		return "", kiteconnect.OrderParams{}, fmt.Errorf("%w: side %q", types.ErrInvalidOrder, req.Side)
	}
	if req.Quantity <= 0 {
		return "", kiteconnect.OrderParams{}, fmt.Errorf("%w: quantity must be positive", types.ErrInvalidOrder)
	}

	validity, err := validityFor(req.TimeInForce)
	if err != nil {
		return "", kiteconnect.OrderParams{}, err
	}

	params := kiteconnect.OrderParams{
		Exchange:        b.p.Exchange,
		Tradingsymbol:   symbol,
		Validity:        validity,
		Product:         b.p.Product,
		OrderType:       kiteconnect.OrderTypeMarket,
		TransactionType: kiteconnect.TransactionTypeBuy,
		Quantity:        req.Quantity,
		Tag:             req.Tag,
	}
	if req.Side == types.SideSell {
		params.TransactionType = kiteconnect.TransactionTypeSell
	}
	switch req.Type {
	case types.OrderTypeLimit:
		if req.LimitPrice <= 0 {
			return "", kiteconnect.OrderParams{}, fmt.Errorf("%w: limit price must be positive", types.ErrInvalidOrder)
		}
		params.OrderType = kiteconnect.OrderTypeLimit
		params.Price = req.LimitPrice
	case types.OrderTypeMarket, "":
	default:
		return "", kiteconnect.OrderParams{}, fmt.Errorf("%w: order type %q", types.ErrInvalidOrder, req.Type)
	}

	variety := kiteconnect.VarietyRegular
	if req.ExtendedHours {
		variety = kiteconnect.VarietyAMO
	}
	return variety, params, nil
}

func validityFor(tif string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(tif)) {
	case "", "day", "gfd":
		return kiteconnect.ValidityDay, nil
	case "ioc":
		return kiteconnect.ValidityIOC, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTimeInForce, tif)
	}
}

func (b *Broker) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	variety, params, err := b.orderParams(req)
	if err != nil {
		return types.OrderResp{}, err
	}

	if b.DryRun() {
		resp := types.OrderResp{
			OrderID:   "SIM-" + uuid.NewString(),
			Status:    "SIMULATED",
			Message:   "dry-run",
			CreatedAt: b.now(),
		}
		logger.Info(ctx, "Simulated order placed", "ticker", params.Tradingsymbol, "side", req.Side, "qty", req.Quantity, "order_id", resp.OrderID)
		return resp, nil
	}

	release, err := b.authorize(ctx)
	if err != nil {
		return types.OrderResp{}, err
	}
	defer release()
	out, err := b.api.PlaceOrder(variety, params)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place order %s %s: %w", params.TransactionType, params.Tradingsymbol, err)
	}
	return types.OrderResp{
		OrderID:   out.OrderID,
		Status:    "PLACED",
		Message:   fmt.Sprintf("%s %s order for %d %s placed", variety, strings.ToLower(params.OrderType), req.Quantity, params.Tradingsymbol),
		CreatedAt: b.now(),
	}, nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return errors.New("order id is required")
	}
	if b.DryRun() {
		logger.Info(ctx, "Simulated order cancel", "order_id", orderID)
		return nil
	}
	release, err := b.authorize(ctx)
	if err != nil {
		return err
	}
	defer release()

	// AMO orders are cancelled under their own variety.
	variety := kiteconnect.VarietyRegular
	if orders, err := b.api.GetOrders(); err == nil {
		for _, o := range orders {
			if o.OrderID == orderID && o.Variety != "" {
				variety = o.Variety
				break
			}
		}
	}

	if _, err := b.api.CancelOrder(variety, orderID, nil); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// orders fetches the day's order book, newest first.
func (b *Broker) orders(ctx context.Context) ([]types.Order, error) {
	release, err := b.authorize(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	raw, err := b.api.GetOrders()
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}

	out := make([]types.Order, 0, len(raw))
	for _, o := range raw {
		order := toOrder(o)
		if order.State == types.StateFilled {
			if err := order.Validate(); err != nil {
				logger.Warn(ctx, "Malformed filled order from broker", "order_id", order.ID, "error", err)
			}
		}
		out = append(out, order)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (b *Broker) OpenOrders(ctx context.Context) ([]types.Order, error) {
	all, err := b.orders(ctx)
	if err != nil {
		return nil, err
	}
	open := make([]types.Order, 0, len(all))
	for _, o := range all {
		if o.State == types.StateQueued {
			open = append(open, o)
		}
	}
	return open, nil
}

// ParseDate validates a YYYY-MM-DD trading date in exchange time.
func ParseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), session.IST)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return d, nil
}

// OrdersByDate returns the orders placed on date. Kite only serves the
// current day's order book, so past dates come back empty.
func (b *Broker) OrdersByDate(ctx context.Context, date string) ([]types.Order, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	all, err := b.orders(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]types.Order, 0, len(all))
	for _, o := range all {
		if sameDay(o.CreatedAt.In(session.IST), day) {
			out = append(out, o)
		}
	}
	return out, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (b *Broker) Positions(ctx context.Context) ([]types.Position, error) {
	release, err := b.authorize(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	raw, err := b.api.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	out := make([]types.Position, 0, len(raw.Net))
	for _, p := range raw.Net {
		out = append(out, toPosition(p))
	}
	return out, nil
}

// Portfolio fetches margins, holdings and positions concurrently.
func (b *Broker) Portfolio(ctx context.Context) (types.Portfolio, error) {
	var (
		margins   kiteconnect.AllMargins
		holdings  kiteconnect.Holdings
		positions []types.Position
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		release, err := b.authorize(gctx)
		if err != nil {
			return err
		}
		defer release()
		m, err := b.api.GetUserMargins()
		if err != nil {
			return fmt.Errorf("get margins: %w", err)
		}
		margins = m
		return nil
	})
	g.Go(func() error {
		release, err := b.authorize(gctx)
		if err != nil {
			return err
		}
		defer release()
		h, err := b.api.GetHoldings()
		if err != nil {
			return fmt.Errorf("get holdings: %w", err)
		}
		holdings = h
		return nil
	})
	g.Go(func() error {
		p, err := b.Positions(gctx)
		if err != nil {
			return err
		}
		positions = p
		return nil
	})
	if err := g.Wait(); err != nil {
		return types.Portfolio{}, err
	}

	eq := margins.Equity
	pf := types.Portfolio{
		Equity:         float64(eq.Net),
		Cash:           float64(eq.Available.Cash),
		OpeningBalance: float64(eq.Available.OpeningBalance),
		Collateral:     float64(eq.Available.Collateral),
		UsedMargin:     float64(eq.Used.Debits),
		Holdings:       make([]types.Holding, 0, len(holdings)),
		Positions:      positions,
	}
	for _, h := range holdings {
		pf.Holdings = append(pf.Holdings, toHolding(h))
	}
	return pf, nil
}
