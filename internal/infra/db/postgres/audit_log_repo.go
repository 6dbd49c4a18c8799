package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/repository"
)

var _ repository.AuditLogRepository = (*auditLogRepo)(nil)

type auditLogRepo struct{ pool *pgxpool.Pool }

func NewAuditLogRepo(pool *pgxpool.Pool) *auditLogRepo {
	return &auditLogRepo{pool: pool}
}

func (r *auditLogRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	const q = `
INSERT INTO audit_logs (id, order_form_id, payment_id, gateway_order_id, amount, action, actor, details, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`

	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	if _, err := execSQL(ctx, r.pool, tx, q, e.ID, e.OrderFormID, e.PaymentID, e.GatewayOrderID, e.Amount, string(e.Action), e.Actor, raw, e.CreatedAt); err != nil {
		return mapExecErr(err)
	}
	return nil
}
