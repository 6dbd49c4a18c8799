//go:build !integration

package model

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amc-subscription/internal/domain"
)

// --- Pricing ---

func TestPricing_Quote(t *testing.T) {
	p := NewPricing(999)

	t.Run("two systems", func(t *testing.T) {
		q, err := p.Quote(2)
		require.NoError(t, err)
		assert.Equal(t, int64(1998), q.Amount)
		assert.Equal(t, int64(199800), q.AmountMinor)
		assert.Equal(t, int64(999), q.UnitPrice)
		assert.Equal(t, 2, q.SystemCount)
	})

	t.Run("amount is always an exact multiple of the unit price", func(t *testing.T) {
		for n := 1; n <= 500; n++ {
			q, err := p.Quote(n)
			require.NoError(t, err)
			assert.Equal(t, int64(n)*999, q.Amount)
			assert.Zero(t, q.Amount%999)
		}
	})

	for _, n := range []int{0, -1, -999} {
		_, err := p.Quote(n)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Quote(%d): expected ErrValidation, got %v", n, err)
		}
	}
}

func TestPricing_DefaultsUnitPrice(t *testing.T) {
	assert.Equal(t, DefaultUnitPrice, NewPricing(0).UnitPrice)
	assert.Equal(t, DefaultUnitPrice, NewPricing(-5).UnitPrice)
	var zero Pricing
	q, err := zero.Quote(1)
	require.NoError(t, err)
	assert.Equal(t, DefaultUnitPrice, q.Amount)
}

func TestPricing_CheckAmount(t *testing.T) {
	p := NewPricing(999)
	assert.NoError(t, p.CheckAmount(2997, 3))
	assert.ErrorIs(t, p.CheckAmount(2998, 3), domain.ErrAmountMismatch)
	assert.ErrorIs(t, p.CheckAmount(999, 2), domain.ErrAmountMismatch)
	assert.ErrorIs(t, p.CheckAmount(0, 0), domain.ErrAmountMismatch)
}

// --- Subscription window ---

func TestNewSubscriptionWindow(t *testing.T) {
	now := time.Date(2024, 2, 29, 17, 45, 3, 0, time.FixedZone("IST", 5*3600+1800))
	w := NewSubscriptionWindow(now)

	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, w.Start.AddDate(0, 0, 365), w.End)
	assert.Equal(t, 365*24*time.Hour, w.End.Sub(w.Start))
}

// --- Lifecycle ---

func TestLifecycle_Transitions(t *testing.T) {
	assert.True(t, LifecycleCreated.CanTransition(LifecycleCaptured))
	assert.True(t, LifecycleCaptured.CanTransition(LifecycleActivated))
	assert.False(t, LifecycleCreated.CanTransition(LifecycleActivated))
	assert.False(t, LifecycleActivated.CanTransition(LifecycleCreated))
	assert.False(t, LifecycleCaptured.CanTransition(LifecycleCreated))
}

func TestLifecycleOf(t *testing.T) {
	q, _ := NewPricing(999).Quote(1)
	intent, err := NewPaymentIntent("amc-1", "order_1", "", q)
	require.NoError(t, err)
	order := &Order{OrderFormID: "amc-1", Status: OrderStatusNew}

	assert.Equal(t, LifecycleCreated, LifecycleOf(intent, order))

	require.NoError(t, intent.Capture("pay_1", time.Now()))
	assert.Equal(t, LifecycleCaptured, LifecycleOf(intent, order))

	act, err := NewActivation(intent, NewSubscriptionWindow(time.Now()), time.Now())
	require.NoError(t, err)
	act.Apply(order)
	assert.Equal(t, LifecycleActivated, LifecycleOf(intent, order))
}

// --- PaymentIntent ---

func TestPaymentIntent_Capture(t *testing.T) {
	q, _ := NewPricing(999).Quote(3)
	intent, err := NewPaymentIntent(" amc-9 ", "order_9", "", q)
	require.NoError(t, err)
	assert.Equal(t, "amc-9", intent.OrderFormID)
	assert.Equal(t, DefaultCurrency, intent.Currency)
	assert.Equal(t, IntentStatusCreated, intent.Status)
	assert.Equal(t, "", intent.PaymentID())

	require.NoError(t, intent.Capture("pay_9", time.Now()))
	assert.Equal(t, IntentStatusCaptured, intent.Status)
	assert.Equal(t, "pay_9", intent.PaymentID())
	require.NotNil(t, intent.VerifiedAt)

	err = intent.Capture("pay_10", time.Now())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, "pay_9", intent.PaymentID())
}

func TestNewPaymentIntent_Invalid(t *testing.T) {
	q, _ := NewPricing(999).Quote(1)
	_, err := NewPaymentIntent("", "order_1", "INR", q)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	_, err = NewPaymentIntent("amc-1", "", "INR", q)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewActivation_RequiresCapture(t *testing.T) {
	q, _ := NewPricing(999).Quote(1)
	intent, _ := NewPaymentIntent("amc-1", "order_1", "", q)
	_, err := NewActivation(intent, NewSubscriptionWindow(time.Now()), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

// --- Invoice ---

var invoiceNumberRe = regexp.MustCompile(`^INV-\d{8}-\d{4}$`)

func TestGenerateInvoiceNumber(t *testing.T) {
	at := time.Date(2025, 7, 4, 23, 0, 0, 0, time.UTC)
	for i := 0; i < 100; i++ {
		n, err := GenerateInvoiceNumber(at)
		require.NoError(t, err)
		assert.Regexp(t, invoiceNumberRe, n)
		assert.Equal(t, "INV-20250704-", n[:13])
	}
}

func TestNewInvoice(t *testing.T) {
	q, _ := NewPricing(999).Quote(2)
	intent, _ := NewPaymentIntent("amc-2", "order_2", "", q)
	require.NoError(t, intent.Capture("pay_2", time.Now()))
	now := time.Date(2025, 1, 10, 8, 30, 0, 0, time.UTC)
	w := NewSubscriptionWindow(now)
	act, err := NewActivation(intent, w, now)
	require.NoError(t, err)

	inv, err := NewInvoice(act)
	require.NoError(t, err)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.Equal(t, int64(1998), inv.Amount)
	assert.Equal(t, w.Start, inv.ValidityStart)
	assert.Equal(t, w.End, inv.ValidityEnd)
	assert.Equal(t, DateOf(now), inv.DueDate)
	assert.Equal(t, "pay_2", inv.GatewayPaymentID)

	require.NoError(t, inv.Renumber())
	assert.Regexp(t, invoiceNumberRe, inv.InvoiceNumber)
	assert.Equal(t, "INV-20250110-", inv.InvoiceNumber[:13])
}
