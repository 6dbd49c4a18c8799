package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type DocumentKind string

const (
	// DocumentKindPaymentConfirmation renders the invoice PDF and emails the customer.
	DocumentKindPaymentConfirmation DocumentKind = "payment_confirmation"
)

// DocumentJob asks the document service to generate and send paperwork for a
// captured payment. Jobs are delivered at least once; the receiver keys on ID.
type DocumentJob struct {
	ID            string       `json:"id"`
	Kind          DocumentKind `json:"kind"`
	OrderFormID   string       `json:"amc_form_id"`
	PaymentID     string       `json:"payment_id"`
	InvoiceNumber string       `json:"invoice_number,omitempty"`
	Attempts      int          `json:"attempts"`
	EnqueuedAt    time.Time    `json:"enqueued_at"`
}

func NewDocumentJob(a Activation, invoiceNumber string) *DocumentJob {
	return &DocumentJob{
		ID:            ulid.Make().String(),
		Kind:          DocumentKindPaymentConfirmation,
		OrderFormID:   a.OrderFormID,
		PaymentID:     a.PaymentID,
		InvoiceNumber: invoiceNumber,
		EnqueuedAt:    time.Now().UTC(),
	}
}
