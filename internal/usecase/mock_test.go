//go:build !integration

package usecase_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/adapter"
	"amc-subscription/internal/domain/ports/repository"
)

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

const testKeySecret = "test_secret"

type MockPaymentGateway struct {
	mu       sync.Mutex
	Requests []adapter.GatewayOrderRequest

	CreateOrderFunc func(ctx context.Context, req adapter.GatewayOrderRequest) (*adapter.GatewayOrder, error)
}

var _ adapter.PaymentGateway = (*MockPaymentGateway)(nil)

func (m *MockPaymentGateway) Name() string  { return "mock" }
func (m *MockPaymentGateway) KeyID() string { return "rzp_test_key" }

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, req adapter.GatewayOrderRequest) (*adapter.GatewayOrder, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, req)
	}
	return &adapter.GatewayOrder{ID: "order_test_1", AmountMinor: req.AmountMinor, Currency: req.Currency, Receipt: req.Receipt, Status: "created"}, nil
}

func (m *MockPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(sign(orderID, paymentID)), []byte(signature))
}

// sign produces the checkout signature the gateway would send.
func sign(orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(testKeySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// ---- Mock DocumentQueue ----

type MockDocumentQueue struct {
	mu   sync.Mutex
	Jobs []*model.DocumentJob
	Err  error
}

var _ adapter.DocumentQueue = (*MockDocumentQueue)(nil)

func (q *MockDocumentQueue) Enqueue(ctx context.Context, job *model.DocumentJob) error {
	if q.Err != nil {
		return q.Err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Jobs = append(q.Jobs, job)
	return nil
}

func (q *MockDocumentQueue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.Jobs)
}

// =============================
// Repositories
// =============================

// ---- Payment intents ----

type MockIntentRepo struct {
	mu        sync.Mutex
	byOrderID map[string]*model.PaymentIntent // order_form_id -> intent
	writes    int

	UpsertFunc       func(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error
	MarkCapturedFunc func(ctx context.Context, tx repository.Tx, id, paymentID string, at time.Time) (bool, error)
}

var _ repository.PaymentIntentRepository = (*MockIntentRepo)(nil)

func NewMockIntentRepo() *MockIntentRepo {
	return &MockIntentRepo{byOrderID: map[string]*model.PaymentIntent{}}
}

func (r *MockIntentRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	if r.UpsertFunc != nil {
		return r.UpsertFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byOrderID[p.OrderFormID]; ok && cur.IsCaptured() {
		return domain.ErrAlreadyExists
	}
	cp := *p
	r.byOrderID[p.OrderFormID] = &cp
	r.writes++
	return nil
}

func (r *MockIntentRepo) find(match func(*model.PaymentIntent) bool) (*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byOrderID {
		if match(p) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockIntentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	return r.find(func(p *model.PaymentIntent) bool { return p.GatewayOrderID == id })
}

func (r *MockIntentRepo) FindByGatewayPaymentID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentIntent, error) {
	return r.find(func(p *model.PaymentIntent) bool { return p.PaymentID() == id })
}

func (r *MockIntentRepo) MarkCaptured(ctx context.Context, tx repository.Tx, id, paymentID string, at time.Time) (bool, error) {
	if r.MarkCapturedFunc != nil {
		return r.MarkCapturedFunc(ctx, tx, id, paymentID, at)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byOrderID {
		if p.ID != id {
			continue
		}
		if p.IsCaptured() {
			return false, nil
		}
		r.writes++
		return true, p.Capture(paymentID, at)
	}
	return false, nil
}

func (r *MockIntentRepo) ListCapturedNotActivated(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range r.byOrderID {
		if p.IsCaptured() && p.VerifiedAt != nil && p.VerifiedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockIntentRepo) Get(orderFormID string) *model.PaymentIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byOrderID[orderFormID]; ok {
		cp := *p
		return &cp
	}
	return nil
}

// SetVerifiedAt backdates the capture of the intent for orderFormID.
func (r *MockIntentRepo) SetVerifiedAt(orderFormID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byOrderID[orderFormID]; ok {
		p.VerifiedAt = &at
	}
}

func (r *MockIntentRepo) Writes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writes
}

// ---- Orders ----

type MockOrderRepo struct {
	mu          sync.Mutex
	data        map[string]*model.Order
	activations int

	ActivateErr error
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo(orders ...*model.Order) *MockOrderRepo {
	r := &MockOrderRepo{data: map[string]*model.Order{}}
	for _, o := range orders {
		cp := *o
		r.data[o.OrderFormID] = &cp
	}
	return r
}

func (r *MockOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *MockOrderRepo) Activate(ctx context.Context, tx repository.Tx, a model.Activation) error {
	if r.ActivateErr != nil {
		return r.ActivateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.data[a.OrderFormID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Apply(o)
	r.activations++
	return nil
}

func (r *MockOrderRepo) Get(id string) *model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *r.data[id]
	return &cp
}

func (r *MockOrderRepo) Activations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activations
}

// ---- Invoices ----

type MockInvoiceRepo struct {
	mu        sync.Mutex
	byPayment map[string]*model.Invoice
	numbers   map[string]bool

	// CreateErrs are returned by successive Create calls before falling back to the store.
	CreateErrs []error
	calls      int
}

var _ repository.InvoiceRepository = (*MockInvoiceRepo)(nil)

func NewMockInvoiceRepo() *MockInvoiceRepo {
	return &MockInvoiceRepo{byPayment: map[string]*model.Invoice{}, numbers: map[string]bool{}}
}

func (r *MockInvoiceRepo) Create(ctx context.Context, tx repository.Tx, inv *model.Invoice) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if len(r.CreateErrs) > 0 {
		err := r.CreateErrs[0]
		r.CreateErrs = r.CreateErrs[1:]
		if err != nil {
			return false, err
		}
	}
	if _, ok := r.byPayment[inv.GatewayPaymentID]; ok {
		return false, nil
	}
	if r.numbers[inv.InvoiceNumber] {
		return false, domain.ErrAlreadyExists
	}
	cp := *inv
	r.byPayment[inv.GatewayPaymentID] = &cp
	r.numbers[inv.InvoiceNumber] = true
	return true, nil
}

func (r *MockInvoiceRepo) FindByPaymentID(ctx context.Context, tx repository.Tx, paymentID string) (*model.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byPayment[paymentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *MockInvoiceRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byPayment)
}

func (r *MockInvoiceRepo) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// ---- Audit log ----

type MockAuditRepo struct {
	mu      sync.Mutex
	Entries []*model.AuditLogEntry
	Err     error
}

var _ repository.AuditLogRepository = (*MockAuditRepo)(nil)

func (r *MockAuditRepo) Append(ctx context.Context, tx repository.Tx, e *model.AuditLogEntry) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, e)
	return nil
}

func (r *MockAuditRepo) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Entries)
}

// ---- Transactions ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc is set.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Helpers
// =============================

var errBoom = errors.New("boom")

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}
