package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type AuditAction string

const (
	AuditActionPaymentCaptured  AuditAction = "payment_captured"
	AuditActionOrderReactivated AuditAction = "order_reactivated"
)

const (
	ActorCustomer   = "customer"
	ActorReconciler = "system:reconciler"
)

// AuditLogEntry is an append-only record of a payment event.
type AuditLogEntry struct {
	ID             string // ULID, sortable by time
	OrderFormID    string
	PaymentID      string
	GatewayOrderID string
	Amount         int64
	Action         AuditAction
	Actor          string
	Details        map[string]any // stored as JSONB
	CreatedAt      time.Time
}

func NewAuditLogEntry(a Activation, action AuditAction, actor string, details map[string]any) *AuditLogEntry {
	return &AuditLogEntry{
		ID:             ulid.Make().String(),
		OrderFormID:    a.OrderFormID,
		PaymentID:      a.PaymentID,
		GatewayOrderID: a.GatewayOrderID,
		Amount:         a.Amount,
		Action:         action,
		Actor:          actor,
		Details:        details,
		CreatedAt:      a.At,
	}
}
