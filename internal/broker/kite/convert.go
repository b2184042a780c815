package kite

import (
	"strings"
	"time"

	"brokerage-mcp/internal/session"
	"brokerage-mcp/internal/types"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
)

// Kite order statuses that are not still working on the exchange.
const (
	statusComplete  = "COMPLETE"
	statusCancelled = "CANCELLED"
	statusRejected  = "REJECTED"
)

func mapState(status string) types.OrderState {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case statusComplete:
		return types.StateFilled
	case statusCancelled:
		return types.StateCancelled
	case statusRejected:
		return types.StateRejected
	case "":
		return types.StateUnknown
	default:
		// OPEN, TRIGGER PENDING, AMO REQ RECEIVED, VALIDATION PENDING, ...
		return types.StateQueued
	}
}

func mapSide(transactionType string) types.Side {
	return types.Side(strings.ToLower(strings.TrimSpace(transactionType)))
}

func mapOrderType(orderType string) types.OrderType {
	if strings.EqualFold(orderType, kiteconnect.OrderTypeLimit) {
		return types.OrderTypeLimit
	}
	return types.OrderTypeMarket
}

// exchangeTime reads Kite timestamps, which carry IST wall-clock time without
// a zone, as IST.
func exchangeTime(t time.Time) time.Time {
	if t.IsZero() || t.Location() != time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), session.IST)
}

func toOrder(o kiteconnect.Order) types.Order {
	order := types.Order{
		ID:             o.OrderID,
		Ticker:         strings.ToUpper(o.TradingSymbol),
		Side:           mapSide(o.TransactionType),
		State:          mapState(o.Status),
		Type:           mapOrderType(o.OrderType),
		Quantity:       decimal.NewFromFloat(float64(o.Quantity)),
		FilledQuantity: decimal.NewFromFloat(float64(o.FilledQuantity)),
		Price:          decimal.NewFromFloat(float64(o.Price)),
		Fees:           decimal.Zero,
		CreatedAt:      exchangeTime(o.OrderTimestamp.Time),
		StatusMessage:  o.StatusMessage,
	}
	if avg := float64(o.AveragePrice); avg > 0 {
		order.AveragePrice = decimal.NewNullDecimal(decimal.NewFromFloat(avg))
	}
	return order
}

func toInstrument(in kiteconnect.Instrument) types.Instrument {
	return types.Instrument{
		Ticker:         in.Tradingsymbol,
		Name:           in.Name,
		Exchange:       in.Exchange,
		Segment:        in.Segment,
		InstrumentType: in.InstrumentType,
		TickSize:       float64(in.TickSize),
		LotSize:        float64(in.LotSize),
		Token:          int64(in.InstrumentToken),
	}
}

func toPosition(p kiteconnect.Position) types.Position {
	return types.Position{
		Ticker:          p.Tradingsymbol,
		Exchange:        p.Exchange,
		Product:         p.Product,
		Quantity:        float64(p.Quantity),
		AverageBuyPrice: float64(p.AveragePrice),
		LastPrice:       float64(p.LastPrice),
		PnL:             float64(p.PnL),
	}
}

func toHolding(h kiteconnect.Holding) types.Holding {
	return types.Holding{
		Ticker:       h.Tradingsymbol,
		Exchange:     h.Exchange,
		Quantity:     float64(h.Quantity),
		AveragePrice: float64(h.AveragePrice),
		LastPrice:    float64(h.LastPrice),
		PnL:          float64(h.PnL),
	}
}
