package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/rs/zerolog"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/infra/logging"
	"amc-subscription/internal/infra/metrics"
	"amc-subscription/internal/infra/redis"
	"amc-subscription/internal/usecase"
)

const maxBodyBytes = 16 << 10

// Limiter is the fixed-window limiter guarding order creation.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	OrdersPerWindow int // 0 disables rate limiting
	Window          time.Duration
}

// Server holds the payment handlers. Either use case may be nil when the
// service is not configured; its routes then answer 500.
type Server struct {
	orders   usecase.OrderUseCase
	payments usecase.PaymentUseCase
	limiter  Limiter
	opts     Options
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewServer(orders usecase.OrderUseCase, payments usecase.PaymentUseCase, limiter Limiter, opts Options, logger *zerolog.Logger) *Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	l := logger.With().Str("component", "PaymentsAPI").Logger()
	return &Server{
		orders:   orders,
		payments: payments,
		limiter:  limiter,
		opts:     opts,
		validate: newValidator(),
		log:      &l,
	}
}

// RegisterAPIV1 mounts the payment routes on r.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Post("/orders", s.CreateOrder)
		r.Post("/verify", s.VerifyPayment)
	})
}

func (s *Server) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		writeError(w, http.StatusInternalServerError, domain.ErrNotConfigured.Error(), nil)
		return
	}
	log := logging.With(r.Context(), s.log)

	if !s.allowOrder(r) {
		writeError(w, http.StatusTooManyRequests, "too many requests, try again later", nil)
		return
	}

	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.IncOrderCreated("rejected")
		writeError(w, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		metrics.IncOrderCreated("rejected")
		writeError(w, http.StatusBadRequest, validationMessage(err), nil)
		return
	}

	res, err := s.orders.CreateOrder(r.Context(), usecase.CreateOrderInput{
		OrderFormID:   string(req.AmcFormID),
		SystemCount:   int(req.SystemCount),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		status, msg := mapError(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Msg("create order failed")
		} else {
			metrics.IncOrderCreated("rejected")
		}
		writeError(w, status, msg, nil)
		return
	}

	writeJSON(w, http.StatusOK, CreateOrderResponse{
		Success:        true,
		OrderID:        res.GatewayOrderID,
		Amount:         res.Amount,
		AmountInPaise:  res.AmountMinor,
		Currency:       res.Currency,
		SystemCount:    res.SystemCount,
		PricePerSystem: res.UnitPrice,
		KeyID:          res.KeyID,
		Prefill: Prefill{
			Name:    res.Prefill.Name,
			Email:   res.Prefill.Email,
			Contact: res.Prefill.Contact,
		},
	})
}

func (s *Server) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	notVerified := false
	if s.payments == nil {
		writeError(w, http.StatusInternalServerError, domain.ErrNotConfigured.Error(), &notVerified)
		return
	}
	log := logging.With(r.Context(), s.log)

	var req VerifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		metrics.ObserveVerify("failure", "bad_request", time.Since(start))
		writeError(w, http.StatusBadRequest, "invalid request body", &notVerified)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		metrics.ObserveVerify("failure", "validation", time.Since(start))
		writeError(w, http.StatusBadRequest, validationMessage(err), &notVerified)
		return
	}

	res, err := s.payments.Verify(r.Context(), usecase.VerifyPaymentInput{
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		OrderFormID:      string(req.AmcFormID),
	})
	if err != nil {
		status, msg := mapError(err)
		metrics.ObserveVerify("failure", reasonOf(err), time.Since(start))
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Str("gateway_order_id", req.RazorpayOrderID).Msg("verify payment failed")
		}
		writeError(w, status, msg, &notVerified)
		return
	}

	reason := "activated"
	if res.AlreadyProcessed {
		reason = "already_processed"
	}
	metrics.ObserveVerify("success", reason, time.Since(start))

	out := VerifyPaymentResponse{
		Success:          true,
		Verified:         true,
		AmcFormID:        res.OrderFormID,
		PaymentID:        res.GatewayPaymentID,
		OrderID:          res.GatewayOrderID,
		Amount:           res.Amount,
		SystemCount:      res.SystemCount,
		InvoiceNumber:    res.InvoiceNumber,
		AlreadyProcessed: res.AlreadyProcessed,
	}
	if !res.Window.Start.IsZero() {
		out.SubscriptionStart = &openapi_types.Date{Time: res.Window.Start}
		out.SubscriptionEnd = &openapi_types.Date{Time: res.Window.End}
	}
	writeJSON(w, http.StatusOK, out)
}

// allowOrder applies the per-IP limit. Limiter failures fail open.
func (s *Server) allowOrder(r *http.Request) bool {
	if s.limiter == nil || s.opts.OrdersPerWindow <= 0 {
		return true
	}
	key := redis.ClientRouteKey(remoteIP(r), "orders")
	ok, err := s.limiter.Allow(r.Context(), key, s.opts.OrdersPerWindow, s.opts.Window)
	if err != nil {
		metrics.IncRateLimit("orders", "error")
		logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if !ok {
		metrics.IncRateLimit("orders", "limited")
		return false
	}
	metrics.IncRateLimit("orders", "allowed")
	return true
}

// mapError translates use case errors to a status and client message.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrVerification):
		return http.StatusBadRequest, "payment verification failed: invalid signature"
	case errors.Is(err, domain.ErrAmountMismatch):
		return http.StatusBadRequest, detail(err, domain.ErrAmountMismatch)
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, detail(err, domain.ErrValidation)
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, detail(err, domain.ErrNotFound)
	case errors.Is(err, domain.ErrNotConfigured):
		return http.StatusInternalServerError, domain.ErrNotConfigured.Error()
	case errors.Is(err, domain.ErrServiceFailure):
		return http.StatusInternalServerError, detail(err, domain.ErrServiceFailure)
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func reasonOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrVerification):
		return "signature"
	case errors.Is(err, domain.ErrAmountMismatch):
		return "amount"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		return "validation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

// detail strips the sentinel prefix from "%w: detail" errors.
func detail(err, sentinel error) string {
	msg := err.Error()
	if d, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok && d != "" {
		return d
	}
	return sentinel.Error()
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, verified *bool) {
	writeJSON(w, status, ErrorResponse{Success: false, Verified: verified, Error: msg})
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
