package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/repository"
)

var _ repository.InvoiceRepository = (*invoiceRepo)(nil)

type invoiceRepo struct{ pool *pgxpool.Pool }

func NewInvoiceRepo(pool *pgxpool.Pool) *invoiceRepo {
	return &invoiceRepo{pool: pool}
}

// Create inserts inv once per gateway payment. A duplicate payment is a silent
// no-op; a taken invoice number surfaces as domain.ErrAlreadyExists.
func (r *invoiceRepo) Create(ctx context.Context, tx repository.Tx, inv *model.Invoice) (bool, error) {
	const q = `
INSERT INTO invoices (
  id, order_form_id, gateway_payment_id, invoice_number, amount, status, validity_start, validity_end, due_date, paid_at, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (gateway_payment_id) DO NOTHING;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		inv.ID, inv.OrderFormID, inv.GatewayPaymentID, inv.InvoiceNumber, inv.Amount, string(inv.Status),
		inv.ValidityStart, inv.ValidityEnd, inv.DueDate, inv.PaidAt, inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrAlreadyExists
		}
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *invoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.Invoice, error) {
	const q = `
SELECT id, order_form_id, gateway_payment_id, invoice_number, amount, status, validity_start, validity_end, due_date, paid_at, created_at
  FROM invoices WHERE gateway_payment_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, gatewayPaymentID)
	if err != nil {
		return nil, err
	}

	inv := &model.Invoice{}
	var status string
	if err := row.Scan(&inv.ID, &inv.OrderFormID, &inv.GatewayPaymentID, &inv.InvoiceNumber, &inv.Amount, &status,
		&inv.ValidityStart, &inv.ValidityEnd, &inv.DueDate, &inv.PaidAt, &inv.CreatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	inv.Status = model.InvoiceStatus(status)
	return inv, nil
}
