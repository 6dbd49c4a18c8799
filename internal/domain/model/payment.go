package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"amc-subscription/internal/domain"
)

type IntentStatus string

const (
	IntentStatusCreated  IntentStatus = "created"  // gateway order registered; awaiting checkout
	IntentStatusCaptured IntentStatus = "captured" // signature verified; money collected
)

// PaymentIntent tracks one gateway order through capture. There is at most one
// intent per order form; re-creating an order overwrites it.
type PaymentIntent struct {
	ID               string // UUID
	OrderFormID      string // AMC order form this payment belongs to
	GatewayOrderID   string // e.g. order_N8d...
	GatewayPaymentID *string
	Amount           int64 // major units, multiple of the unit price
	Currency         string
	SystemCount      int
	Status           IntentStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	VerifiedAt       *time.Time
}

// NewPaymentIntent builds a fresh intent in the created state from a quote.
func NewPaymentIntent(orderFormID, gatewayOrderID, currency string, q Quote) (*PaymentIntent, error) {
	orderFormID = strings.TrimSpace(orderFormID)
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if orderFormID == "" || gatewayOrderID == "" || q.SystemCount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	now := time.Now().UTC()
	return &PaymentIntent{
		ID:             uuid.NewString(),
		OrderFormID:    orderFormID,
		GatewayOrderID: gatewayOrderID,
		Amount:         q.Amount,
		Currency:       currency,
		SystemCount:    q.SystemCount,
		Status:         IntentStatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (p *PaymentIntent) IsCaptured() bool { return p.Status == IntentStatusCaptured }

// Capture moves the intent from created to captured. It happens exactly once.
func (p *PaymentIntent) Capture(paymentID string, at time.Time) error {
	if paymentID == "" {
		return domain.ErrInvalidArgument
	}
	if p.IsCaptured() {
		return fmt.Errorf("%w: intent %s already captured", domain.ErrAlreadyExists, p.ID)
	}
	at = at.UTC()
	p.GatewayPaymentID = &paymentID
	p.Status = IntentStatusCaptured
	p.VerifiedAt = &at
	p.UpdatedAt = at
	return nil
}

// PaymentID returns the captured gateway payment id or "".
func (p *PaymentIntent) PaymentID() string {
	if p.GatewayPaymentID == nil {
		return ""
	}
	return *p.GatewayPaymentID
}
