package model

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"amc-subscription/internal/domain"
)

type InvoiceStatus string

const (
	InvoiceStatusPaid InvoiceStatus = "paid"
)

const invoiceSuffixSpace = 10000

// Invoice is issued once per captured payment.
type Invoice struct {
	ID               string // UUID
	OrderFormID      string
	GatewayPaymentID string // unique; one invoice per capture
	InvoiceNumber    string // INV-YYYYMMDD-XXXX
	Amount           int64
	Status           InvoiceStatus
	ValidityStart    time.Time
	ValidityEnd      time.Time
	DueDate          time.Time
	PaidAt           time.Time
	CreatedAt        time.Time
}

// NewInvoice builds a paid invoice covering the activation window.
func NewInvoice(a Activation) (*Invoice, error) {
	if a.OrderFormID == "" || a.PaymentID == "" {
		return nil, domain.ErrInvalidArgument
	}
	number, err := GenerateInvoiceNumber(a.At)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		ID:               uuid.NewString(),
		OrderFormID:      a.OrderFormID,
		GatewayPaymentID: a.PaymentID,
		InvoiceNumber:    number,
		Amount:           a.Amount,
		Status:           InvoiceStatusPaid,
		ValidityStart:    a.Window.Start,
		ValidityEnd:      a.Window.End,
		DueDate:          DateOf(a.At),
		PaidAt:           a.At,
		CreatedAt:        a.At,
	}, nil
}

// Renumber draws a fresh number for the same day after a collision.
func (inv *Invoice) Renumber() error {
	number, err := GenerateInvoiceNumber(inv.CreatedAt)
	if err != nil {
		return err
	}
	inv.InvoiceNumber = number
	return nil
}

// GenerateInvoiceNumber returns INV-YYYYMMDD-XXXX with a random 4-digit suffix.
// Uniqueness is enforced by the store.
func GenerateInvoiceNumber(at time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(invoiceSuffixSpace))
	if err != nil {
		return "", fmt.Errorf("invoice suffix: %w", err)
	}
	return fmt.Sprintf("INV-%s-%04d", at.UTC().Format("20060102"), n.Int64()), nil
}
