package repository

import (
	"context"
	"time"

	"amc-subscription/internal/domain/model"
)

// -----------------------------
// Payment intents
// -----------------------------

type PaymentIntentRepository interface {
	// Upsert writes the intent keyed by order_form_id. A captured intent is never
	// overwritten; Upsert returns domain.ErrAlreadyExists in that case.
	Upsert(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindByGatewayOrderID(ctx context.Context, tx Tx, gatewayOrderID string) (*model.PaymentIntent, error)
	FindByGatewayPaymentID(ctx context.Context, tx Tx, gatewayPaymentID string) (*model.PaymentIntent, error)
	// MarkCaptured is a compare-and-swap: it only updates an intent that is not
	// captured yet and reports whether this call won.
	MarkCaptured(ctx context.Context, tx Tx, id, gatewayPaymentID string, verifiedAt time.Time) (bool, error)
	// ListCapturedNotActivated returns intents captured before olderThan whose
	// order is not active with the same payment id.
	ListCapturedNotActivated(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)
}

// -----------------------------
// Invoices
// -----------------------------

type InvoiceRepository interface {
	// Create inserts inv. It returns (false, nil) when an invoice for the same
	// gateway payment already exists and domain.ErrAlreadyExists when the
	// invoice number is taken.
	Create(ctx context.Context, tx Tx, inv *model.Invoice) (bool, error)
	FindByPaymentID(ctx context.Context, tx Tx, gatewayPaymentID string) (*model.Invoice, error)
}

// -----------------------------
// Audit log
// -----------------------------

type AuditLogRepository interface {
	Append(ctx context.Context, tx Tx, e *model.AuditLogEntry) error
}
