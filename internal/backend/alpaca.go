package backend

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"bridgectl/internal/domain"
)

// Compile-time interface check.
var _ Backend = (*Alpaca)(nil)

// Alpaca routes orders to an Alpaca brokerage account.
//
// Alpaca credentials identify exactly one account, so ResolveAccount accepts
// the configured alias or the real account number. Alpaca also has no
// free-standing OCO identifier on individual orders (linked exits are
// expressed through order_class on a single request), so the group id is
// carried in each leg's client order id; cancellation of the sibling legs is
// driven by this system, not the brokerage.
type Alpaca struct {
	client *alpaca.Client
	alias  string
	log    *slog.Logger
}

// NewAlpaca creates an Alpaca backend with the given credentials and API
// endpoint. Requests naming the alias resolve to the credential's account.
func NewAlpaca(apiKey, apiSecret, baseURL, alias string, log *slog.Logger) *Alpaca {
	opts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		opts.BaseURL = baseURL
	}
	return &Alpaca{
		client: alpaca.NewClient(opts),
		alias:  alias,
		log:    log.With("backend", "alpaca"),
	}
}

// Name returns "alpaca".
func (b *Alpaca) Name() string { return "alpaca" }

// ResolveAccount accepts the configured alias, the Alpaca account number, or
// the account ID, and returns the account number.
func (b *Alpaca) ResolveAccount(_ context.Context, name string) (string, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return "", fmt.Errorf("GetAccount: %w", err)
	}
	if name == b.alias || name == acct.AccountNumber || name == acct.ID {
		return acct.AccountNumber, nil
	}
	return "", fmt.Errorf("%w: %q", ErrAccountNotFound, name)
}

// ResolveInstrument resolves a symbol to a tradable Alpaca asset.
func (b *Alpaca) ResolveInstrument(_ context.Context, symbol string) (domain.Instrument, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	asset, err := b.client.GetAsset(symbol)
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("%w: %q", ErrInstrumentNotFound, symbol)
	}
	if !asset.Tradable {
		return domain.Instrument{}, fmt.Errorf("%w: %q is not tradable", ErrInstrumentNotFound, symbol)
	}
	return domain.Instrument{Symbol: asset.Symbol, FullName: asset.Name}, nil
}

// SubmitOrder places the order with Alpaca. The OCO group, when present, is
// encoded into the client order id as "<group>-<name>".
func (b *Alpaca) SubmitOrder(_ context.Context, _ string, req *domain.OrderRequest) (*domain.Order, error) {
	preq := alpaca.PlaceOrderRequest{
		Symbol:      req.Instrument.Symbol,
		Qty:         decimalPtr(decimal.NewFromInt(int64(req.Quantity))),
		Side:        toAlpacaSide(req.Side),
		Type:        toAlpacaType(req.Type),
		TimeInForce: alpaca.Day,
	}
	if req.TimeInForce == domain.TIFGTC {
		preq.TimeInForce = alpaca.GTC
	}
	if req.Type == domain.OrderTypeLimit {
		preq.LimitPrice = decimalPtr(decimal.NewFromFloat(req.LimitPrice))
	}
	if req.Type == domain.OrderTypeStopMarket {
		preq.StopPrice = decimalPtr(decimal.NewFromFloat(req.StopPrice))
	}
	if req.OCOGroup != "" {
		preq.ClientOrderID = req.OCOGroup + "-" + strings.ToLower(req.Name)
	}

	order, err := b.client.PlaceOrder(preq)
	if err != nil {
		return nil, fmt.Errorf("PlaceOrder %s %s: %w", req.Side, req.Instrument.Symbol, err)
	}
	converted := fromAlpacaOrder(order)
	converted.OCOGroup = req.OCOGroup
	converted.Name = req.Name
	return converted, nil
}

// CancelOrder cancels an open Alpaca order.
func (b *Alpaca) CancelOrder(_ context.Context, _ string, orderID string) error {
	if err := b.client.CancelOrder(orderID); err != nil {
		return fmt.Errorf("CancelOrder %s: %w", orderID, err)
	}
	return nil
}

// Positions returns the account's open positions.
func (b *Alpaca) Positions(_ context.Context, _ string) ([]domain.Position, error) {
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("GetPositions: %w", err)
	}
	out := make([]domain.Position, 0, len(positions))
	for i := range positions {
		p := &positions[i]
		qty := int(p.Qty.IntPart())
		if strings.EqualFold(p.Side, "short") && qty > 0 {
			qty = -qty
		}
		pos := domain.Position{
			Instrument:   p.Symbol,
			Quantity:     qty,
			AveragePrice: toFloat(p.AvgEntryPrice),
		}
		if p.UnrealizedPL != nil {
			pos.UnrealizedPnL = toFloat(*p.UnrealizedPL)
		}
		out = append(out, pos)
	}
	return out, nil
}

// Orders returns the account's open orders.
func (b *Alpaca) Orders(_ context.Context, _ string) ([]domain.Order, error) {
	orders, err := b.client.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Limit:  500,
	})
	if err != nil {
		return nil, fmt.Errorf("GetOrders: %w", err)
	}
	out := make([]domain.Order, 0, len(orders))
	for i := range orders {
		out = append(out, *fromAlpacaOrder(&orders[i]))
	}
	return out, nil
}

// AccountSummary returns the account snapshot. Alpaca exposes no lifetime
// realized P&L figure; the day's equity change stands in for it.
func (b *Alpaca) AccountSummary(_ context.Context, _ string) (*domain.AccountInfo, error) {
	acct, err := b.client.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("GetPositions: %w", err)
	}

	info := &domain.AccountInfo{
		Name:          acct.AccountNumber,
		Balance:       toFloat(acct.Cash),
		RealizedPnL:   toFloat(acct.Equity.Sub(acct.LastEquity)),
		PositionCount: len(positions),
	}
	for i := range positions {
		if positions[i].UnrealizedPL != nil {
			info.UnrealizedPnL += toFloat(*positions[i].UnrealizedPL)
		}
	}
	return info, nil
}

func toAlpacaSide(s domain.Side) alpaca.Side {
	if s == domain.SideSell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func toAlpacaType(t domain.OrderType) alpaca.OrderType {
	switch t {
	case domain.OrderTypeLimit:
		return alpaca.Limit
	case domain.OrderTypeStopMarket:
		return alpaca.Stop
	}
	return alpaca.Market
}

func fromAlpacaOrder(o *alpaca.Order) *domain.Order {
	order := &domain.Order{
		ID:          o.ID,
		Name:        o.ClientOrderID,
		Instrument:  o.Symbol,
		State:       fromAlpacaStatus(o.Status),
		TimeInForce: domain.TIFDay,
		CreatedAt:   o.CreatedAt,
	}
	if o.Side == alpaca.Sell {
		order.Side = domain.SideSell
	} else {
		order.Side = domain.SideBuy
	}
	switch o.Type {
	case alpaca.Limit:
		order.Type = domain.OrderTypeLimit
	case alpaca.Stop:
		order.Type = domain.OrderTypeStopMarket
	default:
		order.Type = domain.OrderTypeMarket
	}
	if o.Qty != nil {
		order.Quantity = int(o.Qty.IntPart())
	}
	if o.LimitPrice != nil {
		order.LimitPrice = toFloat(*o.LimitPrice)
	}
	if o.StopPrice != nil {
		order.StopPrice = toFloat(*o.StopPrice)
	}
	if o.TimeInForce == alpaca.GTC {
		order.TimeInForce = domain.TIFGTC
	}
	// Recover the OCO group from the "<group>-<name>" client order id.
	if strings.HasPrefix(o.ClientOrderID, "OCO_") {
		group, _, _ := strings.Cut(o.ClientOrderID, "-")
		order.OCOGroup = group
	}
	return order
}

// fromAlpacaStatus maps Alpaca order statuses onto the backend-neutral
// order states.
func fromAlpacaStatus(status string) domain.OrderState {
	switch status {
	case "accepted", "pending_new", "accepted_for_bidding":
		return domain.OrderStateAccepted
	case "new", "partially_filled", "pending_cancel", "pending_replace":
		return domain.OrderStateWorking
	case "filled":
		return domain.OrderStateFilled
	case "canceled", "expired", "done_for_day", "replaced":
		return domain.OrderStateCancelled
	}
	return domain.OrderStateRejected
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal { return &d }
