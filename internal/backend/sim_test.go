package backend

import (
	"context"
	"errors"
	"testing"

	"bridgectl/internal/domain"
)

func newTestSim() *Sim {
	s := NewSim(100000)
	s.AddInstrument("ES", "E-mini S&P 500")
	s.AddInstrument("NQ", "E-mini Nasdaq-100")
	s.SetMark("ES", 4500)
	return s
}

func marketOrder(side domain.Side, qty int) *domain.OrderRequest {
	return &domain.OrderRequest{
		Instrument:  domain.Instrument{Symbol: "ES", FullName: "E-mini S&P 500"},
		Side:        side,
		Type:        domain.OrderTypeMarket,
		Quantity:    qty,
		TimeInForce: domain.TIFDay,
	}
}

func TestSimResolveAccount(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	name, err := s.ResolveAccount(ctx, DefaultAccount)
	if err != nil {
		t.Fatalf("ResolveAccount(%q) returned error: %v", DefaultAccount, err)
	}
	if name != DefaultAccount {
		t.Errorf("ResolveAccount = %q, want %q", name, DefaultAccount)
	}

	if _, err := s.ResolveAccount(ctx, "Live999"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("ResolveAccount of unknown account = %v, want ErrAccountNotFound", err)
	}
}

func TestSimResolveInstrument(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	inst, err := s.ResolveInstrument(ctx, "es")
	if err != nil {
		t.Fatalf("ResolveInstrument(\"es\") returned error: %v", err)
	}
	if inst.Symbol != "ES" || inst.FullName != "E-mini S&P 500" {
		t.Errorf("unexpected instrument: %+v", inst)
	}

	if _, err := s.ResolveInstrument(ctx, "CL"); !errors.Is(err, ErrInstrumentNotFound) {
		t.Errorf("ResolveInstrument of unknown symbol = %v, want ErrInstrumentNotFound", err)
	}
}

func TestSimMarketOrderFillsImmediately(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	order, err := s.SubmitOrder(ctx, DefaultAccount, marketOrder(domain.SideBuy, 2))
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if order.ID == "" {
		t.Fatal("submitted order has no ID")
	}
	if order.State != domain.OrderStateFilled {
		t.Errorf("market order state = %v, want Filled", order.State)
	}

	positions, err := s.Positions(ctx, DefaultAccount)
	if err != nil {
		t.Fatalf("Positions returned error: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}
	if positions[0].Quantity != 2 || positions[0].AveragePrice != 4500 {
		t.Errorf("unexpected position: %+v", positions[0])
	}
}

func TestSimRestingOrderStaysWorking(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	order, err := s.SubmitOrder(ctx, DefaultAccount, &domain.OrderRequest{
		Instrument: domain.Instrument{Symbol: "ES"},
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   1,
		LimitPrice: 4490,
	})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if order.State != domain.OrderStateWorking {
		t.Errorf("limit order state = %v, want Working", order.State)
	}

	positions, _ := s.Positions(ctx, DefaultAccount)
	if len(positions) != 0 {
		t.Errorf("resting order should not create a position, got %+v", positions)
	}
}

func TestSimRealizedPnLOnClose(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	if _, err := s.SubmitOrder(ctx, DefaultAccount, marketOrder(domain.SideBuy, 2)); err != nil {
		t.Fatalf("opening order: %v", err)
	}
	s.SetMark("ES", 4510)
	if _, err := s.SubmitOrder(ctx, DefaultAccount, marketOrder(domain.SideSell, 2)); err != nil {
		t.Fatalf("closing order: %v", err)
	}

	info, err := s.AccountSummary(ctx, DefaultAccount)
	if err != nil {
		t.Fatalf("AccountSummary returned error: %v", err)
	}
	if info.RealizedPnL != 20 {
		t.Errorf("RealizedPnL = %v, want 20", info.RealizedPnL)
	}
	if info.Balance != 100020 {
		t.Errorf("Balance = %v, want 100020", info.Balance)
	}
	if info.PositionCount != 0 {
		t.Errorf("PositionCount = %d, want 0 after flat close", info.PositionCount)
	}
}

func TestSimPositionFlip(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	if _, err := s.SubmitOrder(ctx, DefaultAccount, marketOrder(domain.SideBuy, 1)); err != nil {
		t.Fatalf("opening order: %v", err)
	}
	s.SetMark("ES", 4520)
	if _, err := s.SubmitOrder(ctx, DefaultAccount, marketOrder(domain.SideSell, 3)); err != nil {
		t.Fatalf("flipping order: %v", err)
	}

	positions, _ := s.Positions(ctx, DefaultAccount)
	if len(positions) != 1 {
		t.Fatalf("len(positions) = %d, want 1", len(positions))
	}
	if positions[0].Quantity != -2 {
		t.Errorf("Quantity = %d, want -2 after flip", positions[0].Quantity)
	}
	if positions[0].AveragePrice != 4520 {
		t.Errorf("AveragePrice = %v, want fill price 4520 for flipped remainder", positions[0].AveragePrice)
	}

	info, _ := s.AccountSummary(ctx, DefaultAccount)
	if info.RealizedPnL != 20 {
		t.Errorf("RealizedPnL = %v, want 20 on the closed lot", info.RealizedPnL)
	}
}

func TestSimCancelCancelsOCOSiblings(t *testing.T) {
	s := newTestSim()
	ctx := context.Background()

	tp, err := s.SubmitOrder(ctx, DefaultAccount, &domain.OrderRequest{
		Instrument: domain.Instrument{Symbol: "ES"},
		Side:       domain.SideSell,
		Type:       domain.OrderTypeLimit,
		Quantity:   1,
		LimitPrice: 4520,
		OCOGroup:   "OCO_deadbeef",
	})
	if err != nil {
		t.Fatalf("take-profit order: %v", err)
	}
	sl, err := s.SubmitOrder(ctx, DefaultAccount, &domain.OrderRequest{
		Instrument: domain.Instrument{Symbol: "ES"},
		Side:       domain.SideSell,
		Type:       domain.OrderTypeStopMarket,
		Quantity:   1,
		StopPrice:  4480,
		OCOGroup:   "OCO_deadbeef",
	})
	if err != nil {
		t.Fatalf("stop-loss order: %v", err)
	}

	if err := s.CancelOrder(ctx, DefaultAccount, tp.ID); err != nil {
		t.Fatalf("CancelOrder returned error: %v", err)
	}

	orders, _ := s.Orders(ctx, DefaultAccount)
	for _, o := range orders {
		if o.ID == tp.ID || o.ID == sl.ID {
			if o.State != domain.OrderStateCancelled {
				t.Errorf("order %s state = %v, want Cancelled", o.ID, o.State)
			}
		}
	}

	// Cancelling an already-terminal order is a no-op, not an error.
	if err := s.CancelOrder(ctx, DefaultAccount, sl.ID); err != nil {
		t.Errorf("re-cancel of terminal order returned error: %v", err)
	}

	if err := s.CancelOrder(ctx, DefaultAccount, "SIM-999999"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("cancel of unknown order = %v, want ErrOrderNotFound", err)
	}
}

func TestSimUnknownSymbolSubmit(t *testing.T) {
	s := newTestSim()

	_, err := s.SubmitOrder(context.Background(), DefaultAccount, &domain.OrderRequest{
		Instrument: domain.Instrument{Symbol: "CL"},
		Side:       domain.SideBuy,
		Type:       domain.OrderTypeMarket,
		Quantity:   1,
	})
	if !errors.Is(err, ErrInstrumentNotFound) {
		t.Errorf("SubmitOrder on unknown symbol = %v, want ErrInstrumentNotFound", err)
	}
}
