// Package httpapi exposes the order-routing control surface over HTTP,
// preserving the JSON field shapes existing callers depend on.
package httpapi

import (
	"time"

	"bridgectl/internal/domain"
)

// PlaceOrderRequest is the body of POST /order/place.
type PlaceOrderRequest struct {
	Account    string   `json:"account"`
	Symbol     string   `json:"symbol"`
	Action     string   `json:"action"`
	Quantity   int      `json:"quantity"`
	OrderType  string   `json:"orderType"`
	LimitPrice *float64 `json:"limitPrice"`
	StopPrice  *float64 `json:"stopPrice"`
	TP         *float64 `json:"tp"`
	SL         *float64 `json:"sl"`
}

// PlaceOrderResponse is the success body of POST /order/place.
type PlaceOrderResponse struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId"`
	OCO     string `json:"oco"`
}

// FlattenRequest is the body of POST /position/flatten.
type FlattenRequest struct {
	Account string `json:"account"`
	Symbol  string `json:"symbol"`
}

// FlattenResponse is the success body of POST /position/flatten. When there
// was no position to close, only Success and Message are set.
type FlattenResponse struct {
	Success         bool   `json:"success"`
	OrderID         string `json:"orderId,omitempty"`
	Quantity        int    `json:"quantity,omitempty"`
	CancelledOrders int    `json:"cancelledOrders,omitempty"`
	Message         string `json:"message,omitempty"`
}

// FailureResponse is the error body of the POST endpoints.
type FailureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// PositionJSON is one element of the GET /positions response.
type PositionJSON struct {
	Instrument     string  `json:"instrument"`
	Quantity       int     `json:"quantity"`
	AveragePrice   float64 `json:"averagePrice"`
	MarketPosition string  `json:"marketPosition"`
	UnrealizedPnL  float64 `json:"unrealizedPnL"`
}

// OrderJSON is one element of the GET /orders response.
type OrderJSON struct {
	OrderID     string  `json:"orderId"`
	Name        string  `json:"name"`
	Instrument  string  `json:"instrument"`
	OrderAction string  `json:"orderAction"`
	OrderType   string  `json:"orderType"`
	Quantity    int     `json:"quantity"`
	LimitPrice  float64 `json:"limitPrice"`
	StopPrice   float64 `json:"stopPrice"`
	OrderState  string  `json:"orderState"`
	OCO         string  `json:"oco"`
	TimeInForce string  `json:"timeInForce"`
}

// AccountJSON is the GET /account response.
type AccountJSON struct {
	Name          string  `json:"name"`
	Balance       float64 `json:"balance"`
	RealizedPnL   float64 `json:"realizedPnL"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
	PositionCount int     `json:"positionCount"`
}

// HealthResponse is the GET /health response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func convertPosition(p *domain.Position) PositionJSON {
	return PositionJSON{
		Instrument:     p.Instrument,
		Quantity:       p.Quantity,
		AveragePrice:   p.AveragePrice,
		MarketPosition: string(p.MarketPosition()),
		UnrealizedPnL:  p.UnrealizedPnL,
	}
}

func convertOrder(o *domain.Order) OrderJSON {
	return OrderJSON{
		OrderID:     o.ID,
		Name:        o.Name,
		Instrument:  o.Instrument,
		OrderAction: string(o.Side),
		OrderType:   string(o.Type),
		Quantity:    o.Quantity,
		LimitPrice:  o.LimitPrice,
		StopPrice:   o.StopPrice,
		OrderState:  string(o.State),
		OCO:         o.OCOGroup,
		TimeInForce: string(o.TimeInForce),
	}
}

func convertAccount(a *domain.AccountInfo) AccountJSON {
	return AccountJSON{
		Name:          a.Name,
		Balance:       a.Balance,
		RealizedPnL:   a.RealizedPnL,
		UnrealizedPnL: a.UnrealizedPnL,
		PositionCount: a.PositionCount,
	}
}
