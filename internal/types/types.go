package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidOrder is returned when an order record fails boundary validation.
var ErrInvalidOrder = errors.New("invalid order")

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

type OrderState string

const (
	StateFilled    OrderState = "filled"
	StateQueued    OrderState = "queued"
	StateCancelled OrderState = "cancelled"
	StateRejected  OrderState = "rejected"
	StateUnknown   OrderState = "unknown"
)

type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Order is a brokerage order as seen by this module. Records coming from the
// brokerage client are mapped into this shape at the broker boundary.
type Order struct {
	ID             string
	Ticker         string
	Side           Side
	State          OrderState
	Type           OrderType
	Quantity       decimal.Decimal
	FilledQuantity decimal.Decimal
	Price          decimal.Decimal
	AveragePrice   decimal.NullDecimal
	Fees           decimal.Decimal
	CreatedAt      time.Time
	StatusMessage  string
}

// EffectivePrice returns the average fill price when one is recorded, and the
// nominal order price otherwise.
func (o Order) EffectivePrice() decimal.Decimal {
	if o.AveragePrice.Valid && o.AveragePrice.Decimal.IsPositive() {
		return o.AveragePrice.Decimal
	}
	return o.Price
}

// Validate checks the fields the profit estimators rely on.
func (o Order) Validate() error {
	if strings.TrimSpace(o.Ticker) == "" {
		return fmt.Errorf("%w: order %q has no ticker", ErrInvalidOrder, o.ID)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: order %q has side %q", ErrInvalidOrder, o.ID, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: order %q has non-positive quantity %s", ErrInvalidOrder, o.ID, o.Quantity)
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("%w: order %q has negative price %s", ErrInvalidOrder, o.ID, o.Price)
	}
	if o.AveragePrice.Valid && o.AveragePrice.Decimal.IsNegative() {
		return fmt.Errorf("%w: order %q has negative average price %s", ErrInvalidOrder, o.ID, o.AveragePrice.Decimal)
	}
	return nil
}

// OrderReq is a request to place an order.
type OrderReq struct {
	Ticker        string
	Side          Side
	Type          OrderType
	Quantity      int
	LimitPrice    float64
	TimeInForce   string
	ExtendedHours bool
	Tag           string
}

type OrderResp struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type Quote struct {
	Ticker        string
	LastPrice     float64
	BidPrice      float64
	AskPrice      float64
	Open          float64
	High          float64
	Low           float64
	PreviousClose float64
	NetChange     float64
	Volume        int64
	LowerCircuit  float64
	UpperCircuit  float64
	UpdatedAt     time.Time
}

type Instrument struct {
	Ticker         string
	Name           string
	Exchange       string
	Segment        string
	InstrumentType string
	TickSize       float64
	LotSize        float64
	Token          int64
}

type Position struct {
	Ticker          string
	Exchange        string
	Product         string
	Quantity        float64
	AverageBuyPrice float64
	LastPrice       float64
	PnL             float64
}

// CostBasis is quantity times average buy price.
func (p Position) CostBasis() float64 { return p.Quantity * p.AverageBuyPrice }

type Holding struct {
	Ticker       string
	Exchange     string
	Quantity     float64
	AveragePrice float64
	LastPrice    float64
	PnL          float64
}

// MarketValue is the holding valued at the last traded price.
func (h Holding) MarketValue() float64 { return h.Quantity * h.LastPrice }

// Portfolio aggregates cash, holdings and open positions of the account.
type Portfolio struct {
	Equity         float64
	Cash           float64
	OpeningBalance float64
	Collateral     float64
	UsedMargin     float64
	Holdings       []Holding
	Positions      []Position
}

// HoldingsValue sums the market value of all holdings.
func (p Portfolio) HoldingsValue() float64 {
	var v float64
	for _, h := range p.Holdings {
		v += h.MarketValue()
	}
	return v
}
