package engine

import (
	"context"
	"fmt"
	"strings"

	"bridgectl/internal/domain"
)

// FlattenResult reports the outcome of FlattenPosition.
type FlattenResult struct {
	OrderID         string // backend id of the closing order; empty when flat
	Quantity        int    // absolute quantity closed
	CancelledOrders int    // working/accepted orders cancelled before closing
	Flat            bool   // no open position; nothing was submitted
}

// FlattenPosition closes the instrument's open position to zero. It first
// cancels every still-working order for the instrument (the resting
// protective legs of any open bracket), then submits an opposing market
// order sized to the open quantity.
//
// Cancellation must precede the closing order so a protective order cannot
// fill just after the position is closed and reopen it in the opposite
// direction. The ordering holds within this call only; it is not atomic
// with respect to other requests or backend fills in flight.
//
// Flattening an instrument with no open position is a valid no-op: the
// result has Flat set and no closing order is submitted.
func (o *Orchestrator) FlattenPosition(ctx context.Context, account, symbol string) (*FlattenResult, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}

	// 1. Resolve account and instrument.
	if account == "" {
		account = o.defaultAccount
	}
	account, err := o.backend.ResolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	inst, err := o.backend.ResolveInstrument(ctx, symbol)
	if err != nil {
		return nil, err
	}

	// 2. Re-read current position; acting on cached state is never safe here.
	positions, err := o.backend.Positions(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}
	var open *domain.Position
	for i := range positions {
		if strings.EqualFold(positions[i].Instrument, inst.Symbol) {
			open = &positions[i]
			break
		}
	}
	if open == nil || open.Quantity == 0 {
		return &FlattenResult{Flat: true}, nil
	}

	// 3. Cancel the instrument's working orders. Each cancellation is an
	// independent backend request; one failure does not stop the rest or
	// the closing order.
	orders, err := o.backend.Orders(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}
	cancelled := 0
	for i := range orders {
		ord := &orders[i]
		if !strings.EqualFold(ord.Instrument, inst.Symbol) || !ord.State.Open() {
			continue
		}
		if err := o.backend.CancelOrder(ctx, account, ord.ID); err != nil {
			o.log.Warn("cancelling working order failed", "orderID", ord.ID, "error", err)
			continue
		}
		o.log.Info("cancelled order", "orderID", ord.ID, "name", ord.Name, "orderType", ord.Type)
		cancelled++
	}

	// 4. Close with an opposing market order for the open quantity.
	closeSide := domain.SideSell
	if open.MarketPosition() == domain.MarketPositionShort {
		closeSide = domain.SideBuy
	}
	quantity := open.Quantity
	if quantity < 0 {
		quantity = -quantity
	}
	closeOrder, err := o.backend.SubmitOrder(ctx, account, &domain.OrderRequest{
		Instrument:  inst,
		Side:        closeSide,
		Type:        domain.OrderTypeMarket,
		Quantity:    quantity,
		Name:        "Close",
		TimeInForce: domain.TIFDay,
	})
	if err != nil {
		return nil, fmt.Errorf("closing order: %w", err)
	}
	if closeOrder == nil || closeOrder.ID == "" {
		return nil, ErrSubmissionFailed
	}

	return &FlattenResult{
		OrderID:         closeOrder.ID,
		Quantity:        quantity,
		CancelledOrders: cancelled,
	}, nil
}
