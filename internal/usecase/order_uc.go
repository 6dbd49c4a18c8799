package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/domain/ports/repository"
	"amc-subscription/internal/infra/logging"
	"amc-subscription/internal/infra/metrics"
)

// Compile-time check
var _ OrderUseCase = (*orderUC)(nil)

// maxReceiptLen is the gateway's limit on the receipt field.
const maxReceiptLen = 40

type OrderUseCase interface {
	// CreateOrder prices the request, registers a gateway order and records
	// a payment intent for the order form.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error)
}

type CreateOrderInput struct {
	OrderFormID   string
	SystemCount   int
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

type Prefill struct {
	Name    string
	Email   string
	Contact string
}

type CreateOrderResult struct {
	GatewayOrderID string
	Amount         int64
	AmountMinor    int64
	Currency       string
	SystemCount    int
	UnitPrice      int64
	KeyID          string
	Prefill        Prefill
}

type orderUC struct {
	intents  repository.PaymentIntentRepository
	gateway  adapter.PaymentGateway
	pricing  model.Pricing
	currency string
	log      *zerolog.Logger
	dev      bool
}

func NewOrderUseCase(intents repository.PaymentIntentRepository, gateway adapter.PaymentGateway, pricing model.Pricing, currency string, logger *zerolog.Logger, dev bool) *orderUC {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	l := logger.With().Str("component", "OrderUC").Logger()
	return &orderUC{intents: intents, gateway: gateway, pricing: pricing, currency: currency, log: &l, dev: dev}
}

func (u *orderUC) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	defer logging.TraceDuration(u.log, "OrderUC.CreateOrder")()

	in = normalizeOrderInput(in)
	if err := validateOrderInput(in); err != nil {
		return nil, err
	}
	quote, err := u.pricing.Quote(in.SystemCount)
	if err != nil {
		return nil, err
	}
	log := logging.With(ctx, u.log)

	order, err := u.gateway.CreateOrder(ctx, adapter.GatewayOrderRequest{
		AmountMinor: quote.AmountMinor,
		Currency:    u.currency,
		Receipt:     receiptFor(in.OrderFormID),
		Notes: map[string]string{
			"amc_form_id":      in.OrderFormID,
			"system_count":     strconv.Itoa(quote.SystemCount),
			"customer_name":    in.CustomerName,
			"customer_email":   in.CustomerEmail,
			"customer_phone":   in.CustomerPhone,
			"price_per_system": strconv.FormatInt(quote.UnitPrice, 10),
		},
	})
	if err != nil {
		metrics.IncOrderCreated("gateway_error")
		log.Error().Err(err).Str("gateway", u.gateway.Name()).Msg("gateway order creation failed")
		return nil, fmt.Errorf("%w: failed to create payment order", domain.ErrServiceFailure)
	}

	intent, err := model.NewPaymentIntent(in.OrderFormID, order.ID, u.currency, quote)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceFailure, err)
	}
	// The gateway order already exists; checkout can proceed without the local row.
	if err := u.intents.Upsert(ctx, nil, intent); err != nil {
		ev := log.Error()
		if errors.Is(err, domain.ErrAlreadyExists) {
			ev = log.Warn()
		}
		ev.Err(err).
			Str("gateway_order_id", order.ID).
			Msg("payment intent not persisted")
	}

	metrics.IncOrderCreated("created")
	log.Info().
		Str("gateway_order_id", order.ID).
		Int("system_count", quote.SystemCount).
		Int64("amount", quote.Amount).
		Str("customer_email", logging.Redact(in.CustomerEmail, u.dev)).
		Msg("payment order created")

	return &CreateOrderResult{
		GatewayOrderID: order.ID,
		Amount:         quote.Amount,
		AmountMinor:    quote.AmountMinor,
		Currency:       u.currency,
		SystemCount:    quote.SystemCount,
		UnitPrice:      quote.UnitPrice,
		KeyID:          u.gateway.KeyID(),
		Prefill: Prefill{
			Name:    in.CustomerName,
			Email:   in.CustomerEmail,
			Contact: in.CustomerPhone,
		},
	}, nil
}

func normalizeOrderInput(in CreateOrderInput) CreateOrderInput {
	in.OrderFormID = strings.TrimSpace(in.OrderFormID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerEmail = strings.TrimSpace(in.CustomerEmail)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	return in
}

func validateOrderInput(in CreateOrderInput) error {
	var missing []string
	if in.OrderFormID == "" {
		missing = append(missing, "amcFormId")
	}
	if in.CustomerName == "" {
		missing = append(missing, "customerName")
	}
	if in.CustomerEmail == "" {
		missing = append(missing, "customerEmail")
	}
	if in.CustomerPhone == "" {
		missing = append(missing, "customerPhone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", domain.ErrValidation, strings.Join(missing, ", "))
	}
	if in.SystemCount <= 0 {
		return fmt.Errorf("%w: system count must be a positive integer", domain.ErrValidation)
	}
	return nil
}

func receiptFor(orderFormID string) string {
	r := "amc_" + orderFormID
	if len(r) > maxReceiptLen {
		r = r[:maxReceiptLen]
	}
	return r
}
