// Package domain defines the order, position, and account types shared by
// the backend adapters and the orchestration engine.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "Buy"
	SideSell Side = "Sell"
)

// ParseSide parses a side string case-insensitively ("BUY", "sell", ...).
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Opposite returns the opposing side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType is the execution type of an order.
type OrderType string

const (
	OrderTypeMarket     OrderType = "Market"
	OrderTypeLimit      OrderType = "Limit"
	OrderTypeStopMarket OrderType = "StopMarket"
)

// ParseOrderType parses an order type string case-insensitively. An empty
// string defaults to Market.
func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "MARKET":
		return OrderTypeMarket, nil
	case "LIMIT":
		return OrderTypeLimit, nil
	case "STOPMARKET":
		return OrderTypeStopMarket, nil
	}
	return "", fmt.Errorf("unknown order type %q", s)
}

// OrderState is the lifecycle state of an order at the backend.
type OrderState string

const (
	OrderStateAccepted  OrderState = "Accepted"
	OrderStateWorking   OrderState = "Working"
	OrderStateFilled    OrderState = "Filled"
	OrderStateCancelled OrderState = "Cancelled"
	OrderStateRejected  OrderState = "Rejected"
)

// Open reports whether the order is still live at the backend. Only open
// orders may be cancelled; terminal orders must never be re-cancelled.
func (st OrderState) Open() bool {
	return st == OrderStateWorking || st == OrderStateAccepted
}

// TimeInForce is the validity window of an order.
type TimeInForce string

const (
	TIFDay TimeInForce = "Day"
	TIFGTC TimeInForce = "GTC"
)

// Instrument is a tradable instrument resolved from a symbol. Immutable for
// the duration of a request.
type Instrument struct {
	Symbol   string
	FullName string
}

// OrderRequest describes an order to be submitted to a backend. Once
// submitted, ownership passes to the backend and the request is never
// mutated again.
type OrderRequest struct {
	Instrument  Instrument
	Side        Side
	Type        OrderType
	Quantity    int
	LimitPrice  float64 // required for Limit orders
	StopPrice   float64 // required for StopMarket orders
	OCOGroup    string  // empty when the order is not part of an OCO group
	Name        string
	TimeInForce TimeInForce
}

// Order is a backend-owned order as observed by this system.
type Order struct {
	ID          string
	Name        string
	Instrument  string
	Side        Side
	Type        OrderType
	Quantity    int
	LimitPrice  float64
	StopPrice   float64
	State       OrderState
	OCOGroup    string
	TimeInForce TimeInForce
	CreatedAt   time.Time
}

// MarketPosition is the directional state of a position.
type MarketPosition string

const (
	MarketPositionLong  MarketPosition = "Long"
	MarketPositionShort MarketPosition = "Short"
	MarketPositionFlat  MarketPosition = "Flat"
)

// Position is a backend-owned position. Quantity is signed: negative means
// short. Positions are re-read on every request, never cached.
type Position struct {
	Instrument    string
	Quantity      int
	AveragePrice  float64
	UnrealizedPnL float64
}

// MarketPosition returns the directional side of the position.
func (p Position) MarketPosition() MarketPosition {
	switch {
	case p.Quantity > 0:
		return MarketPositionLong
	case p.Quantity < 0:
		return MarketPositionShort
	}
	return MarketPositionFlat
}

// AccountInfo is a snapshot of an account's financial metrics.
type AccountInfo struct {
	Name          string
	Balance       float64
	RealizedPnL   float64
	UnrealizedPnL float64
	PositionCount int
}
