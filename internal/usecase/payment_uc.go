package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/domain/ports/repository"
	portuc "amc-subscription/internal/domain/ports/usecase"
	"amc-subscription/internal/infra/logging"
	"amc-subscription/internal/infra/metrics"
)

// Compile-time checks
var (
	_ PaymentUseCase   = (*paymentUC)(nil)
	_ portuc.Activator = (*paymentUC)(nil)
)

const (
	maxInvoiceAttempts = 5
	enqueueTimeout     = 3 * time.Second
)

type PaymentUseCase interface {
	// Verify checks the checkout signature and activates the AMC order.
	// Replays for an already captured payment return the stored result.
	Verify(ctx context.Context, in VerifyPaymentInput) (*VerifyPaymentResult, error)
	// ReplayActivation re-runs activation for a captured intent whose order
	// is not active yet.
	ReplayActivation(ctx context.Context, intent *model.PaymentIntent) error
}

type VerifyPaymentInput struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderFormID      string
}

type VerifyPaymentResult struct {
	OrderFormID      string
	GatewayOrderID   string
	GatewayPaymentID string
	Amount           int64
	SystemCount      int
	Window           model.SubscriptionWindow
	InvoiceNumber    string
	AlreadyProcessed bool
}

type paymentUC struct {
	intents  repository.PaymentIntentRepository
	orders   repository.OrderRepository
	invoices repository.InvoiceRepository
	audit    repository.AuditLogRepository
	tm       repository.TransactionManager
	gateway  adapter.PaymentGateway
	docs     adapter.DocumentQueue // optional
	pricing  model.Pricing
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPaymentUseCase(
	intents repository.PaymentIntentRepository,
	orders repository.OrderRepository,
	invoices repository.InvoiceRepository,
	audit repository.AuditLogRepository,
	tm repository.TransactionManager,
	gateway adapter.PaymentGateway,
	docs adapter.DocumentQueue,
	pricing model.Pricing,
	logger *zerolog.Logger,
) *paymentUC {
	l := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		intents:  intents,
		orders:   orders,
		invoices: invoices,
		audit:    audit,
		tm:       tm,
		gateway:  gateway,
		docs:     docs,
		pricing:  pricing,
		log:      &l,
		now:      time.Now,
	}
}

func (u *paymentUC) Verify(ctx context.Context, in VerifyPaymentInput) (*VerifyPaymentResult, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()

	in = normalizeVerifyInput(in)
	if err := validateVerifyInput(in); err != nil {
		return nil, err
	}
	ctx = logging.WithOrderFormID(ctx, in.OrderFormID)
	log := logging.With(ctx, u.log)

	// 1) Idempotency: a captured payment is answered from storage.
	prior, err := u.intents.FindByGatewayPaymentID(ctx, nil, in.GatewayPaymentID)
	switch {
	case err == nil && prior.IsCaptured():
		if prior.OrderFormID != in.OrderFormID {
			log.Warn().
				Str("payment_id", in.GatewayPaymentID).
				Str("intent_order_form_id", prior.OrderFormID).
				Msg("order form does not match processed payment")
			return nil, fmt.Errorf("%w: order form does not match payment", domain.ErrValidation)
		}
		log.Info().Str("payment_id", in.GatewayPaymentID).Msg("payment already processed")
		metrics.IncPayment("already_processed")
		return u.storedResult(ctx, prior), nil
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("%w: idempotency lookup: %v", domain.ErrServiceFailure, err)
	}

	// 2) Authenticity before trusting anything else.
	if !u.gateway.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		log.Warn().Str("gateway_order_id", in.GatewayOrderID).Msg("payment signature mismatch")
		metrics.IncPayment("rejected")
		return nil, domain.ErrVerification
	}

	// 3) Local intent.
	intent, err := u.intents.FindByGatewayOrderID(ctx, nil, in.GatewayOrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: payment record not found", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: load payment record: %v", domain.ErrServiceFailure, err)
	}
	if intent.OrderFormID != in.OrderFormID {
		log.Warn().
			Str("gateway_order_id", in.GatewayOrderID).
			Str("intent_order_form_id", intent.OrderFormID).
			Msg("order form does not match payment")
		return nil, fmt.Errorf("%w: order form does not match payment", domain.ErrValidation)
	}

	// 4) Amount re-validation against the unit price.
	if err := u.pricing.CheckAmount(intent.Amount, intent.SystemCount); err != nil {
		log.Error().Err(err).Str("intent_id", intent.ID).Msg("stored payment amount rejected")
		return nil, err
	}

	now := u.now().UTC()
	window := model.NewSubscriptionWindow(now)

	// 5) Capture (compare-and-swap). Losing the race means another request owns activation.
	won, err := u.intents.MarkCaptured(ctx, nil, intent.ID, in.GatewayPaymentID, now)
	if err != nil {
		log.Error().Err(err).Str("intent_id", intent.ID).Msg("capture update failed")
		return nil, fmt.Errorf("%w: failed to record payment", domain.ErrServiceFailure)
	}
	if !won {
		log.Info().Str("intent_id", intent.ID).Msg("capture lost to concurrent request")
		current, err := u.intents.FindByGatewayOrderID(ctx, nil, in.GatewayOrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: reload payment record: %v", domain.ErrServiceFailure, err)
		}
		return u.storedResult(ctx, current), nil
	}
	metrics.IncPayment("captured")
	metrics.AddPaymentRevenue(intent.Currency, intent.Amount)
	metrics.AddSystemsActivated(intent.SystemCount)
	if err := intent.Capture(in.GatewayPaymentID, now); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}

	// 6) Activation. The captured intent stays durable if this fails.
	act, err := model.NewActivation(intent, window, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}
	if err := u.orders.Activate(ctx, nil, act); err != nil {
		log.Error().Err(err).
			Str("payment_id", act.PaymentID).
			Msg("order activation failed; payment captured but order inactive")
		return nil, fmt.Errorf("%w: failed to activate order", domain.ErrServiceFailure)
	}

	metrics.IncActivation("verify")

	// 7) Best-effort follow-ups.
	invoiceNumber := u.finalize(ctx, act, intent, model.AuditActionPaymentCaptured, model.ActorCustomer)

	log.Info().
		Str("payment_id", act.PaymentID).
		Int64("amount", act.Amount).
		Str("invoice_number", invoiceNumber).
		Msg("payment verified and order activated")

	return &VerifyPaymentResult{
		OrderFormID:      act.OrderFormID,
		GatewayOrderID:   act.GatewayOrderID,
		GatewayPaymentID: act.PaymentID,
		Amount:           act.Amount,
		SystemCount:      intent.SystemCount,
		Window:           window,
		InvoiceNumber:    invoiceNumber,
	}, nil
}

func (u *paymentUC) ReplayActivation(ctx context.Context, intent *model.PaymentIntent) error {
	defer logging.TraceDuration(u.log, "PaymentUC.ReplayActivation")()
	if intent == nil {
		return domain.ErrInvalidArgument
	}
	ctx = logging.WithOrderFormID(ctx, intent.OrderFormID)

	var act model.Activation
	var replayed bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		locked, err := u.intents.FindByGatewayOrderID(ctx, tx, intent.GatewayOrderID)
		if err != nil {
			return err
		}
		if !locked.IsCaptured() || locked.VerifiedAt == nil {
			return nil
		}
		order, err := u.orders.FindByID(ctx, tx, locked.OrderFormID)
		if err != nil {
			return err
		}
		if !model.LifecycleOf(locked, order).CanTransition(model.LifecycleActivated) {
			return nil
		}
		// Stamped with the capture time so the invoice dates match the window.
		act, err = model.NewActivation(locked, model.NewSubscriptionWindow(*locked.VerifiedAt), *locked.VerifiedAt)
		if err != nil {
			return err
		}
		if err := u.orders.Activate(ctx, tx, act); err != nil {
			return err
		}
		replayed = true
		*intent = *locked
		return nil
	})
	if err != nil {
		return fmt.Errorf("replay activation for %s: %w", intent.GatewayOrderID, err)
	}
	if !replayed {
		return nil
	}
	metrics.IncActivation("reconciler")
	u.finalize(ctx, act, intent, model.AuditActionOrderReactivated, model.ActorReconciler)
	logging.With(ctx, u.log).Info().Str("payment_id", act.PaymentID).Msg("order activation replayed")
	return nil
}

// finalize runs the non-fatal follow-ups of an activation and returns the
// invoice number, or "" when no invoice could be issued.
func (u *paymentUC) finalize(ctx context.Context, act model.Activation, intent *model.PaymentIntent, action model.AuditAction, actor string) string {
	invoiceNumber := u.issueInvoice(ctx, act)
	u.appendAudit(ctx, act, intent, invoiceNumber, action, actor)
	u.enqueueDocuments(ctx, act, invoiceNumber)
	return invoiceNumber
}

func (u *paymentUC) issueInvoice(ctx context.Context, act model.Activation) string {
	log := logging.With(ctx, u.log)
	inv, err := model.NewInvoice(act)
	if err != nil {
		metrics.IncFollowUpFailure("invoice")
		log.Warn().Err(err).Msg("invoice not created")
		return ""
	}
	for attempt := 1; attempt <= maxInvoiceAttempts; attempt++ {
		created, err := u.invoices.Create(ctx, nil, inv)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			log.Debug().Str("invoice_number", inv.InvoiceNumber).Int("attempt", attempt).Msg("invoice number taken; regenerating")
			if err := inv.Renumber(); err != nil {
				metrics.IncFollowUpFailure("invoice")
				log.Warn().Err(err).Msg("invoice not created")
				return ""
			}
			continue
		case err != nil:
			metrics.IncFollowUpFailure("invoice")
			log.Warn().Err(err).Str("payment_id", act.PaymentID).Msg("invoice not created")
			return ""
		case !created:
			existing, err := u.invoices.FindByPaymentID(ctx, nil, act.PaymentID)
			if err != nil {
				log.Warn().Err(err).Str("payment_id", act.PaymentID).Msg("existing invoice lookup failed")
				return ""
			}
			return existing.InvoiceNumber
		default:
			return inv.InvoiceNumber
		}
	}
	metrics.IncFollowUpFailure("invoice")
	log.Warn().Str("payment_id", act.PaymentID).Msg("invoice not created: no free invoice number")
	return ""
}

func (u *paymentUC) appendAudit(ctx context.Context, act model.Activation, intent *model.PaymentIntent, invoiceNumber string, action model.AuditAction, actor string) {
	entry := model.NewAuditLogEntry(act, action, actor, map[string]any{
		"system_count":       intent.SystemCount,
		"currency":           intent.Currency,
		"subscription_start": act.Window.Start.Format(time.DateOnly),
		"subscription_end":   act.Window.End.Format(time.DateOnly),
		"invoice_number":     invoiceNumber,
	})
	if err := u.audit.Append(ctx, nil, entry); err != nil {
		metrics.IncFollowUpFailure("audit")
		logging.With(ctx, u.log).Warn().Err(err).Str("action", string(action)).Msg("audit log append failed")
	}
}

func (u *paymentUC) enqueueDocuments(ctx context.Context, act model.Activation, invoiceNumber string) {
	log := logging.With(ctx, u.log)
	if u.docs == nil {
		log.Debug().Msg("document queue not configured; skipping")
		return
	}
	// Detached from the request so a client disconnect does not drop the job.
	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()
	job := model.NewDocumentJob(act, invoiceNumber)
	if err := u.docs.Enqueue(qctx, job); err != nil {
		metrics.IncFollowUpFailure("documents")
		log.Warn().Err(err).Str("job_id", job.ID).Msg("document job not enqueued")
		return
	}
	metrics.IncDocumentJob("enqueued")
	log.Debug().Str("job_id", job.ID).Msg("document job enqueued")
}

// storedResult rebuilds the success payload of a captured intent.
func (u *paymentUC) storedResult(ctx context.Context, intent *model.PaymentIntent) *VerifyPaymentResult {
	log := logging.With(ctx, u.log)
	res := &VerifyPaymentResult{
		OrderFormID:      intent.OrderFormID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: intent.PaymentID(),
		Amount:           intent.Amount,
		SystemCount:      intent.SystemCount,
		AlreadyProcessed: true,
	}
	if intent.VerifiedAt != nil {
		res.Window = model.NewSubscriptionWindow(*intent.VerifiedAt)
	}
	if order, err := u.orders.FindByID(ctx, nil, intent.OrderFormID); err == nil {
		if order.PaymentID == res.GatewayPaymentID && order.SubscriptionStartDate != nil && order.SubscriptionEndDate != nil {
			res.Window = model.SubscriptionWindow{Start: *order.SubscriptionStartDate, End: *order.SubscriptionEndDate}
		}
	} else {
		log.Debug().Err(err).Msg("order lookup for stored result failed")
	}
	if inv, err := u.invoices.FindByPaymentID(ctx, nil, res.GatewayPaymentID); err == nil {
		res.InvoiceNumber = inv.InvoiceNumber
	}
	return res
}

func normalizeVerifyInput(in VerifyPaymentInput) VerifyPaymentInput {
	in.GatewayOrderID = strings.TrimSpace(in.GatewayOrderID)
	in.GatewayPaymentID = strings.TrimSpace(in.GatewayPaymentID)
	in.Signature = strings.TrimSpace(in.Signature)
	in.OrderFormID = strings.TrimSpace(in.OrderFormID)
	return in
}

func validateVerifyInput(in VerifyPaymentInput) error {
	var missing []string
	if in.GatewayOrderID == "" {
		missing = append(missing, "razorpay_order_id")
	}
	if in.GatewayPaymentID == "" {
		missing = append(missing, "razorpay_payment_id")
	}
	if in.Signature == "" {
		missing = append(missing, "razorpay_signature")
	}
	if in.OrderFormID == "" {
		missing = append(missing, "amc_form_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	return nil
}
