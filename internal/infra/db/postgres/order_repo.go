package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, orderFormID string) (*model.Order, error) {
	q := `
SELECT order_form_id, payment_status, COALESCE(payment_id, ''), COALESCE(gateway_order_id, ''), COALESCE(amount, 0),
       status, subscription_start_date, subscription_end_date, updated_at
  FROM amc_order_forms WHERE order_form_id=$1`
	if isTx(tx) {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, orderFormID)
	if err != nil {
		return nil, err
	}

	o := &model.Order{}
	var paymentStatus, status string
	var start, end *time.Time
	if err := row.Scan(&o.OrderFormID, &paymentStatus, &o.PaymentID, &o.GatewayOrderID, &o.Amount, &status, &start, &end, &o.UpdatedAt); err != nil {
		return nil, mapScanErr(err)
	}
	o.PaymentStatus = model.OrderPaymentStatus(paymentStatus)
	o.Status = model.OrderStatus(status)
	if start != nil {
		s := model.DateOf(*start)
		o.SubscriptionStartDate = &s
	}
	if end != nil {
		e := model.DateOf(*end)
		o.SubscriptionEndDate = &e
	}
	return o, nil
}

func (r *orderRepo) Activate(ctx context.Context, tx repository.Tx, a model.Activation) error {
	const q = `
UPDATE amc_order_forms
   SET payment_status = $2,
       payment_id = $3,
       gateway_order_id = $4,
       amount = $5,
       status = $6,
       subscription_start_date = $7,
       subscription_end_date = $8,
       updated_at = $9
 WHERE order_form_id = $1;`

	var o model.Order
	a.Apply(&o)
	cmd, err := execSQL(ctx, r.pool, tx, q,
		o.OrderFormID, string(o.PaymentStatus), o.PaymentID, o.GatewayOrderID, o.Amount,
		string(o.Status), o.SubscriptionStartDate, o.SubscriptionEndDate, o.UpdatedAt)
	if err != nil {
		return mapExecErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
