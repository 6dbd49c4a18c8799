package payment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"amc-subscription/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for dev mode and tests. It signs
// with the configured secret, so the verify flow behaves like production.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	keyID  string
	secret string
	orders map[string]adapter.GatewayOrder
}

func NewNoopPaymentGateway(keyID, secret string) *NoopPaymentGateway {
	return &NoopPaymentGateway{
		keyID:  keyID,
		secret: secret,
		orders: make(map[string]adapter.GatewayOrder),
	}
}

func (g *NoopPaymentGateway) Name() string  { return "noop" }
func (g *NoopPaymentGateway) KeyID() string { return g.keyID }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("order_noop%06d", g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, req adapter.GatewayOrderRequest) (*adapter.GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, errors.New("noop: amount must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o := adapter.GatewayOrder{
		ID:          g.next(),
		AmountMinor: req.AmountMinor,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
	}
	g.orders[o.ID] = o
	return &o, nil
}

func (g *NoopPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifyCheckoutSignature(g.secret, orderID, paymentID, signature)
}

// Sign returns the signature a successful checkout of orderID would carry.
func (g *NoopPaymentGateway) Sign(orderID, paymentID string) string {
	return CheckoutSignature(g.secret, orderID, paymentID)
}
