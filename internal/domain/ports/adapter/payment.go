package adapter

import (
	"context"
)

// GatewayOrderRequest is what we register with the gateway before checkout.
type GatewayOrderRequest struct {
	AmountMinor int64             // paise
	Currency    string            // ISO 4217, e.g. INR
	Receipt     string            // our reference, max 40 chars
	Notes       map[string]string // reconciliation metadata
}

// GatewayOrder is the provider-side order.
type GatewayOrder struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// PaymentGateway is the hex port for payment providers.
type PaymentGateway interface {
	Name() string
	// KeyID is the public key identifier handed to the checkout widget.
	KeyID() string

	// CreateOrder registers an order on the provider side.
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (*GatewayOrder, error)
	// VerifySignature checks the checkout callback signature for orderID/paymentID.
	VerifySignature(orderID, paymentID, signature string) bool
}
