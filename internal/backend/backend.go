// Package backend defines the trading-backend boundary and provides
// implementations for routing orders to a brokerage or to a local
// simulation.
package backend

import (
	"context"
	"errors"

	"bridgectl/internal/domain"
)

// Resolution and lookup failures shared by all backends.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInstrumentNotFound = errors.New("instrument not found")
	ErrOrderNotFound      = errors.New("order not found")
)

// Backend abstracts the owning trading platform's order, position, and
// account subsystem. Calls are synchronous and best-effort consistent; all
// serialization of order effects happens inside the backend. Submitted
// orders are owned by the backend from that point on.
type Backend interface {
	// Name returns the backend identifier (e.g. "alpaca", "sim").
	Name() string

	// ResolveAccount resolves an account name to its canonical identifier.
	ResolveAccount(ctx context.Context, name string) (string, error)

	// ResolveInstrument resolves a symbol to a tradable instrument.
	ResolveInstrument(ctx context.Context, symbol string) (domain.Instrument, error)

	// SubmitOrder sends an order to the backend for execution and returns
	// the backend's view of it.
	SubmitOrder(ctx context.Context, account string, req *domain.OrderRequest) (*domain.Order, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, account, orderID string) error

	// Positions returns the account's positions.
	Positions(ctx context.Context, account string) ([]domain.Position, error)

	// Orders returns the account's orders in any state.
	Orders(ctx context.Context, account string) ([]domain.Order, error)

	// AccountSummary returns a snapshot of the account's financial metrics.
	AccountSummary(ctx context.Context, account string) (*domain.AccountInfo, error)
}
