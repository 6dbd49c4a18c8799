package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentIntentRepo)(nil)

const intentColumns = `id, order_form_id, gateway_order_id, gateway_payment_id, amount, currency, system_count, status, created_at, updated_at, verified_at`

type paymentIntentRepo struct{ pool *pgxpool.Pool }

func NewPaymentIntentRepo(pool *pgxpool.Pool) *paymentIntentRepo {
	return &paymentIntentRepo{pool: pool}
}

// Upsert re-creates the intent of an order form unless it is already captured.
func (r *paymentIntentRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, order_form_id, gateway_order_id, amount, currency, system_count, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9
) ON CONFLICT (order_form_id) DO UPDATE SET
  gateway_order_id=EXCLUDED.gateway_order_id, amount=EXCLUDED.amount, currency=EXCLUDED.currency,
  system_count=EXCLUDED.system_count, status='created', gateway_payment_id=NULL, verified_at=NULL,
  updated_at=EXCLUDED.updated_at
WHERE payment_intents.status <> 'captured'
RETURNING id;`

	row, err := pickRow(ctx, r.pool, tx, q, p.ID, p.OrderFormID, p.GatewayOrderID, p.Amount, p.Currency, p.SystemCount, string(model.IntentStatusCreated), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrAlreadyExists
		}
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return mapExecErr(err)
	}
	p.ID = id
	p.Status = model.IntentStatusCreated
	p.GatewayPaymentID = nil
	p.VerifiedAt = nil
	return nil
}

func (r *paymentIntentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.PaymentIntent, error) {
	return r.findOne(ctx, tx, `SELECT `+intentColumns+` FROM payment_intents WHERE gateway_order_id=$1`, gatewayOrderID)
}

func (r *paymentIntentRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, gatewayPaymentID string) (*model.PaymentIntent, error) {
	return r.findOne(ctx, tx, `SELECT `+intentColumns+` FROM payment_intents WHERE gateway_payment_id=$1`, gatewayPaymentID)
}

func (r *paymentIntentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg string) (*model.PaymentIntent, error) {
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p, err := scanIntent(row)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return p, nil
}

// MarkCaptured flips created -> captured. Zero affected rows means another
// request already captured the intent.
func (r *paymentIntentRepo) MarkCaptured(ctx context.Context, tx repository.Tx, id, gatewayPaymentID string, verifiedAt time.Time) (bool, error) {
	const q = `
UPDATE payment_intents
   SET status = 'captured',
       gateway_payment_id = $2,
       verified_at = $3,
       updated_at = $3
 WHERE id = $1
   AND status <> 'captured';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, gatewayPaymentID, verifiedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrAlreadyExists
		}
		return false, mapExecErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *paymentIntentRepo) ListCapturedNotActivated(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT i.id, i.order_form_id, i.gateway_order_id, i.gateway_payment_id, i.amount, i.currency, i.system_count, i.status, i.created_at, i.updated_at, i.verified_at
  FROM payment_intents i
  JOIN amc_order_forms o ON o.order_form_id = i.order_form_id
 WHERE i.status = 'captured'
   AND i.verified_at < $1
   AND (o.status <> 'active' OR o.payment_id IS DISTINCT FROM i.gateway_payment_id)
 ORDER BY i.verified_at ASC
 LIMIT $2;`

	rows, err := queryRows(ctx, r.pool, tx, q, olderThan.UTC(), limit)
	if err != nil {
		return nil, mapExecErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, mapScanErr(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapExecErr(err)
	}
	return out, nil
}

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	var status string
	if err := row.Scan(&p.ID, &p.OrderFormID, &p.GatewayOrderID, &p.GatewayPaymentID, &p.Amount, &p.Currency, &p.SystemCount, &status, &p.CreatedAt, &p.UpdatedAt, &p.VerifiedAt); err != nil {
		return nil, err
	}
	p.Status = model.IntentStatus(status)
	return p, nil
}
