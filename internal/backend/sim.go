package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"bridgectl/internal/domain"
)

// DefaultAccount is the simulation account used when a request omits one.
const DefaultAccount = "Sim101"

// Compile-time interface check.
var _ Backend = (*Sim)(nil)

// Sim is an in-memory trading backend for local and test use. Market orders
// fill immediately at the instrument's mark price; limit and stop-market
// orders rest in the Working state. Cancelling or filling an order that
// belongs to an OCO group cancels the group's other open orders.
//
// All state lives behind one mutex; callers from concurrent requests see a
// serialized view, mirroring the synchronous call/response contract of a
// local trading engine.
type Sim struct {
	mu          sync.Mutex
	accounts    map[string]*simAccount
	instruments map[string]domain.Instrument // keyed by upper-cased symbol
	marks       map[string]float64           // keyed by canonical symbol
	nextID      int
}

type simAccount struct {
	name      string
	cash      float64
	realized  float64
	positions map[string]*simPosition // keyed by canonical symbol
	orders    []*domain.Order         // insertion order
}

type simPosition struct {
	quantity int
	avgPrice float64
}

// NewSim creates a simulated backend with the given starting cash per
// account. With no account names, only DefaultAccount exists.
func NewSim(startingCash float64, accounts ...string) *Sim {
	if len(accounts) == 0 {
		accounts = []string{DefaultAccount}
	}
	s := &Sim{
		accounts:    make(map[string]*simAccount, len(accounts)),
		instruments: make(map[string]domain.Instrument),
		marks:       make(map[string]float64),
	}
	for _, name := range accounts {
		s.accounts[name] = &simAccount{
			name:      name,
			cash:      startingCash,
			positions: make(map[string]*simPosition),
		}
	}
	return s
}

// AddInstrument registers a tradable instrument. Unregistered symbols fail
// resolution, as unknown symbols do on a real platform.
func (s *Sim) AddInstrument(symbol, fullName string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if fullName == "" {
		fullName = symbol
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instruments[symbol] = domain.Instrument{Symbol: symbol, FullName: fullName}
}

// SetMark sets the instrument's mark price. Market orders fill at the mark;
// unrealized P&L is computed against it.
func (s *Sim) SetMark(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[strings.ToUpper(symbol)] = price
}

// Name returns "sim".
func (s *Sim) Name() string { return "sim" }

// ResolveAccount returns the account name unchanged if it exists.
func (s *Sim) ResolveAccount(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrAccountNotFound, name)
	}
	return name, nil
}

// ResolveInstrument looks up a registered instrument, case-insensitively.
func (s *Sim) ResolveInstrument(_ context.Context, symbol string) (domain.Instrument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.instruments[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("%w: %q", ErrInstrumentNotFound, symbol)
	}
	return inst, nil
}

// SubmitOrder records the order. Market orders fill immediately at the mark
// price; resting orders stay Working until cancelled.
func (s *Sim) SubmitOrder(_ context.Context, account string, req *domain.OrderRequest) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, account)
	}
	symbol := req.Instrument.Symbol
	if _, ok := s.instruments[symbol]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInstrumentNotFound, symbol)
	}

	s.nextID++
	order := &domain.Order{
		ID:          fmt.Sprintf("SIM-%06d", s.nextID),
		Name:        req.Name,
		Instrument:  symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		LimitPrice:  req.LimitPrice,
		StopPrice:   req.StopPrice,
		State:       domain.OrderStateWorking,
		OCOGroup:    req.OCOGroup,
		TimeInForce: req.TimeInForce,
		CreatedAt:   time.Now(),
	}
	acct.orders = append(acct.orders, order)

	if req.Type == domain.OrderTypeMarket {
		s.fillLocked(acct, order, s.marks[symbol])
	}

	cp := *order
	return &cp, nil
}

// fillLocked marks the order filled, applies it to the position, and
// cancels any open OCO siblings. Caller holds s.mu.
func (s *Sim) fillLocked(acct *simAccount, order *domain.Order, price float64) {
	order.State = domain.OrderStateFilled

	pos, ok := acct.positions[order.Instrument]
	if !ok {
		pos = &simPosition{}
		acct.positions[order.Instrument] = pos
	}

	delta := order.Quantity
	if order.Side == domain.SideSell {
		delta = -delta
	}

	switch {
	case pos.quantity == 0 || sameSign(pos.quantity, delta):
		// Opening or adding: average in.
		total := pos.quantity + delta
		pos.avgPrice = (pos.avgPrice*float64(pos.quantity) + price*float64(delta)) / float64(total)
		pos.quantity = total
	default:
		// Reducing, closing, or flipping: realize P&L on the closed lot.
		closed := min(abs(pos.quantity), abs(delta))
		pnl := (price - pos.avgPrice) * float64(closed) * float64(sign(pos.quantity))
		acct.realized += pnl
		acct.cash += pnl
		pos.quantity += delta
		if pos.quantity == 0 {
			pos.avgPrice = 0
		} else if sameSign(pos.quantity, delta) {
			// Flipped through zero; remainder opens at the fill price.
			pos.avgPrice = price
		}
	}

	s.cancelGroupLocked(acct, order.OCOGroup, order.ID)
}

// cancelGroupLocked cancels all open orders sharing the OCO group, except
// the order identified by exceptID. Caller holds s.mu.
func (s *Sim) cancelGroupLocked(acct *simAccount, group, exceptID string) {
	if group == "" {
		return
	}
	for _, o := range acct.orders {
		if o.ID != exceptID && o.OCOGroup == group && o.State.Open() {
			o.State = domain.OrderStateCancelled
		}
	}
}

// CancelOrder cancels an open order and its open OCO siblings. Cancelling
// an order that already reached a terminal state is a no-op.
func (s *Sim) CancelOrder(_ context.Context, account, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return fmt.Errorf("%w: %q", ErrAccountNotFound, account)
	}
	for _, o := range acct.orders {
		if o.ID != orderID {
			continue
		}
		if o.State.Open() {
			o.State = domain.OrderStateCancelled
			s.cancelGroupLocked(acct, o.OCOGroup, o.ID)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrOrderNotFound, orderID)
}

// Positions returns every position the account has traded, including flat
// ones; callers filter by quantity where it matters.
func (s *Sim) Positions(_ context.Context, account string) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, account)
	}
	positions := make([]domain.Position, 0, len(acct.positions))
	for symbol, pos := range acct.positions {
		positions = append(positions, domain.Position{
			Instrument:    symbol,
			Quantity:      pos.quantity,
			AveragePrice:  pos.avgPrice,
			UnrealizedPnL: (s.marks[symbol] - pos.avgPrice) * float64(pos.quantity),
		})
	}
	return positions, nil
}

// Orders returns all of the account's orders in submission order.
func (s *Sim) Orders(_ context.Context, account string) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, account)
	}
	orders := make([]domain.Order, 0, len(acct.orders))
	for _, o := range acct.orders {
		orders = append(orders, *o)
	}
	return orders, nil
}

// AccountSummary returns the account's cash balance and P&L snapshot.
func (s *Sim) AccountSummary(_ context.Context, account string) (*domain.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[account]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, account)
	}
	info := &domain.AccountInfo{
		Name:        acct.name,
		Balance:     acct.cash,
		RealizedPnL: acct.realized,
	}
	for symbol, pos := range acct.positions {
		if pos.quantity == 0 {
			continue
		}
		info.PositionCount++
		info.UnrealizedPnL += (s.marks[symbol] - pos.avgPrice) * float64(pos.quantity)
	}
	return info, nil
}

func sameSign(a, b int) bool { return (a > 0) == (b > 0) }

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	if n < 0 {
		return -1
	}
	return 1
}
