package model

import (
	"fmt"
	"time"

	"amc-subscription/internal/domain"
)

type OrderStatus string

const (
	OrderStatusNew       OrderStatus = "new"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusInactive  OrderStatus = "inactive"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type OrderPaymentStatus string

const (
	OrderPaymentPending OrderPaymentStatus = "Pending"
	OrderPaymentPaid    OrderPaymentStatus = "Paid"
)

// Order is the AMC order form. Staff screens own most of its columns; this
// service only writes the payment and activation fields.
type Order struct {
	OrderFormID           string
	PaymentStatus         OrderPaymentStatus
	PaymentID             string
	GatewayOrderID        string
	Amount                int64
	Status                OrderStatus
	SubscriptionStartDate *time.Time
	SubscriptionEndDate   *time.Time
	UpdatedAt             time.Time
}

func (o *Order) IsActive() bool { return o.Status == OrderStatusActive }

// Activation carries the fields written to an order after a verified capture.
type Activation struct {
	OrderFormID    string
	PaymentID      string
	GatewayOrderID string
	Amount         int64
	Window         SubscriptionWindow
	At             time.Time
}

// NewActivation derives the activation of a captured intent.
func NewActivation(intent *PaymentIntent, window SubscriptionWindow, at time.Time) (Activation, error) {
	if intent == nil || !intent.IsCaptured() {
		return Activation{}, fmt.Errorf("%w: activation requires a captured intent", domain.ErrInvalidArgument)
	}
	return Activation{
		OrderFormID:    intent.OrderFormID,
		PaymentID:      intent.PaymentID(),
		GatewayOrderID: intent.GatewayOrderID,
		Amount:         intent.Amount,
		Window:         window,
		At:             at.UTC(),
	}, nil
}

// Apply writes the activation onto o.
func (a Activation) Apply(o *Order) {
	start, end := a.Window.Start, a.Window.End
	o.OrderFormID = a.OrderFormID
	o.PaymentStatus = OrderPaymentPaid
	o.PaymentID = a.PaymentID
	o.GatewayOrderID = a.GatewayOrderID
	o.Amount = a.Amount
	o.Status = OrderStatusActive
	o.SubscriptionStartDate = &start
	o.SubscriptionEndDate = &end
	o.UpdatedAt = a.At
}
