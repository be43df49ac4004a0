// Package engine implements the order orchestration core: translating a
// single place-order request into an entry order plus OCO-linked protective
// exits, and flattening open positions.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"bridgectl/internal/backend"
	"bridgectl/internal/domain"
)

// Orchestration failures beyond the backend's own resolution errors.
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrSubmissionFailed  = errors.New("order submission failed")
)

// Orchestrator routes caller intent to a trading backend. It holds no
// per-request state of its own: every call re-reads backend state, so
// concurrent requests need no locking in this layer. Ordering is only
// guaranteed within a single call's own steps.
type Orchestrator struct {
	backend        backend.Backend
	defaultAccount string
	log            *slog.Logger
}

// New creates an Orchestrator over the given backend. Requests that omit an
// account use defaultAccount.
func New(b backend.Backend, defaultAccount string, log *slog.Logger) *Orchestrator {
	if defaultAccount == "" {
		defaultAccount = backend.DefaultAccount
	}
	return &Orchestrator{
		backend:        b,
		defaultAccount: defaultAccount,
		log:            log.With("component", "engine"),
	}
}

// PlaceParams are the validated inputs for PlaceBracketOrder. Zero prices
// mean "not set"; a price of zero is never tradable.
type PlaceParams struct {
	Account    string
	Symbol     string
	Side       domain.Side
	Quantity   int
	Type       domain.OrderType
	LimitPrice float64
	StopPrice  float64
	TakeProfit float64
	StopLoss   float64
}

// PlaceResult reports a successful bracket placement.
type PlaceResult struct {
	OrderID  string // backend id of the entry order
	OCOGroup string // empty when no protective legs were requested
}

// PlaceBracketOrder submits an entry order and, when take-profit and/or
// stop-loss prices are given, opposite-side protective orders joined by a
// fresh OCO group.
//
// The OCO id goes on the entry order only when the entry itself rests
// (Limit or StopMarket): a resting entry in the same group lets a cancelled
// or filled entry take a stale bracket down with it. A Market entry fills
// immediately, so attaching the group would risk the backend evaluating the
// OCO before the protective orders exist; its exits are submitted as a
// self-contained pair instead.
//
// A protective-leg failure after a successful entry is reported as an
// overall failure but never rolls the entry back; the caller owns
// reconciliation of a partially protected position.
func (o *Orchestrator) PlaceBracketOrder(ctx context.Context, p PlaceParams) (*PlaceResult, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	// 1. Resolve account and instrument; fail fast on either miss.
	account := p.Account
	if account == "" {
		account = o.defaultAccount
	}
	account, err := o.backend.ResolveAccount(ctx, account)
	if err != nil {
		return nil, err
	}
	inst, err := o.backend.ResolveInstrument(ctx, p.Symbol)
	if err != nil {
		return nil, err
	}

	// 2. One fresh OCO group per call when any protective leg is requested.
	ocoGroup := ""
	if p.TakeProfit > 0 || p.StopLoss > 0 {
		ocoGroup = newOCOGroup()
	}

	// 3. Attachment timing: only resting entries join their own group.
	entryOCO := ""
	if ocoGroup != "" && p.Type != domain.OrderTypeMarket {
		entryOCO = ocoGroup
		o.log.Info("attaching OCO to entry order", "ocoGroup", ocoGroup, "orderType", p.Type)
	} else if ocoGroup != "" {
		o.log.Info("market entry; exits placed as separate OCO pair", "ocoGroup", ocoGroup)
	}

	// 4. Submit the entry order.
	entry, err := o.backend.SubmitOrder(ctx, account, &domain.OrderRequest{
		Instrument:  inst,
		Side:        p.Side,
		Type:        p.Type,
		Quantity:    p.Quantity,
		LimitPrice:  p.LimitPrice,
		StopPrice:   p.StopPrice,
		OCOGroup:    entryOCO,
		Name:        "Entry",
		TimeInForce: domain.TIFDay,
	})
	if err != nil {
		return nil, fmt.Errorf("entry order: %w", err)
	}
	if entry == nil || entry.ID == "" {
		return nil, ErrSubmissionFailed
	}

	// 5. Protective legs: opposite side, same group, submitted
	// independently of each other. The entry stands either way.
	exitSide := p.Side.Opposite()
	var tpErr, slErr error
	if p.TakeProfit > 0 {
		_, tpErr = o.backend.SubmitOrder(ctx, account, &domain.OrderRequest{
			Instrument:  inst,
			Side:        exitSide,
			Type:        domain.OrderTypeLimit,
			Quantity:    p.Quantity,
			LimitPrice:  p.TakeProfit,
			OCOGroup:    ocoGroup,
			Name:        "TakeProfit",
			TimeInForce: domain.TIFDay,
		})
		if tpErr != nil {
			tpErr = fmt.Errorf("take-profit order: %w", tpErr)
			o.log.Error("take-profit submission failed", "entryID", entry.ID, "error", tpErr)
		}
	}
	if p.StopLoss > 0 {
		_, slErr = o.backend.SubmitOrder(ctx, account, &domain.OrderRequest{
			Instrument:  inst,
			Side:        exitSide,
			Type:        domain.OrderTypeStopMarket,
			Quantity:    p.Quantity,
			StopPrice:   p.StopLoss,
			OCOGroup:    ocoGroup,
			Name:        "StopLoss",
			TimeInForce: domain.TIFDay,
		})
		if slErr != nil {
			slErr = fmt.Errorf("stop-loss order: %w", slErr)
			o.log.Error("stop-loss submission failed", "entryID", entry.ID, "error", slErr)
		}
	}
	if err := errors.Join(tpErr, slErr); err != nil {
		return nil, err
	}

	return &PlaceResult{OrderID: entry.ID, OCOGroup: ocoGroup}, nil
}

// validate enforces the input contract and applies documented defaults.
func (p *PlaceParams) validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidParameters)
	}
	if p.Side != domain.SideBuy && p.Side != domain.SideSell {
		return fmt.Errorf("%w: action must be BUY or SELL", ErrInvalidParameters)
	}
	if p.Quantity == 0 {
		p.Quantity = 1
	}
	if p.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidParameters)
	}
	if p.Type == "" {
		p.Type = domain.OrderTypeMarket
	}
	switch p.Type {
	case domain.OrderTypeMarket:
	case domain.OrderTypeLimit:
		if p.LimitPrice <= 0 {
			return fmt.Errorf("%w: limitPrice is required for LIMIT orders", ErrInvalidParameters)
		}
	case domain.OrderTypeStopMarket:
		if p.StopPrice <= 0 {
			return fmt.Errorf("%w: stopPrice is required for STOPMARKET orders", ErrInvalidParameters)
		}
	default:
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidParameters, p.Type)
	}
	return nil
}

// newOCOGroup generates a collision-free OCO identifier for one call.
func newOCOGroup() string {
	id := uuid.New()
	return "OCO_" + strings.ReplaceAll(id.String(), "-", "")[:8]
}
