//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"

	"amc-subscription/internal/domain"
	"amc-subscription/internal/domain/model"
	"amc-subscription/internal/domain/ports/repository"
)

func newIntent(t *testing.T, orderFormID, gatewayOrderID string, systems int) *model.PaymentIntent {
	t.Helper()
	q, err := model.NewPricing(999).Quote(systems)
	if err != nil {
		t.Fatal(err)
	}
	p, err := model.NewPaymentIntent(orderFormID, gatewayOrderID, "INR", q)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestPaymentIntentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentIntentRepo(testPool)

	t.Run("should upsert by order form and find by gateway order id", func(t *testing.T) {
		cleanup(t)
		first := newIntent(t, "amc-1", "order_A", 1)
		if err := repo.Upsert(ctx, nil, first); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
		retry := newIntent(t, "amc-1", "order_B", 3)
		if err := repo.Upsert(ctx, nil, retry); err != nil {
			t.Fatalf("second Upsert failed: %v", err)
		}
		if retry.ID != first.ID {
			t.Errorf("expected row id to be kept, got %s want %s", retry.ID, first.ID)
		}

		got, err := repo.FindByGatewayOrderID(ctx, nil, "order_B")
		if err != nil {
			t.Fatalf("FindByGatewayOrderID failed: %v", err)
		}
		if got.Amount != 2997 || got.SystemCount != 3 || got.Status != model.IntentStatusCreated {
			t.Errorf("unexpected intent: %+v", got)
		}
		if _, err := repo.FindByGatewayOrderID(ctx, nil, "order_A"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected old gateway order to be gone, got %v", err)
		}
	})

	t.Run("should capture exactly once", func(t *testing.T) {
		cleanup(t)
		p := newIntent(t, "amc-2", "order_C", 2)
		if err := repo.Upsert(ctx, nil, p); err != nil {
			t.Fatal(err)
		}

		const n = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				won, err := repo.MarkCaptured(ctx, nil, p.ID, "pay_1", time.Now())
				if err != nil {
					t.Errorf("MarkCaptured failed: %v", err)
					return
				}
				if won {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Fatalf("expected exactly one winner, got %d", wins)
		}

		got, err := repo.FindByGatewayPaymentID(ctx, nil, "pay_1")
		if err != nil {
			t.Fatalf("FindByGatewayPaymentID failed: %v", err)
		}
		if !got.IsCaptured() || got.VerifiedAt == nil {
			t.Errorf("expected captured intent, got %+v", got)
		}
	})

	t.Run("should never reset a captured intent", func(t *testing.T) {
		cleanup(t)
		p := newIntent(t, "amc-3", "order_D", 1)
		if err := repo.Upsert(ctx, nil, p); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.MarkCaptured(ctx, nil, p.ID, "pay_2", time.Now()); err != nil {
			t.Fatal(err)
		}
		err := repo.Upsert(ctx, nil, newIntent(t, "amc-3", "order_E", 1))
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		got, _ := repo.FindByGatewayPaymentID(ctx, nil, "pay_2")
		if got == nil || got.GatewayOrderID != "order_D" {
			t.Errorf("captured intent was modified: %+v", got)
		}
	})

	t.Run("should list captured intents whose order is not active", func(t *testing.T) {
		cleanup(t)
		seedOrder(t, "amc-4")
		seedOrder(t, "amc-5")
		stale := newIntent(t, "amc-4", "order_F", 1)
		done := newIntent(t, "amc-5", "order_G", 1)
		for _, p := range []*model.PaymentIntent{stale, done} {
			if err := repo.Upsert(ctx, nil, p); err != nil {
				t.Fatal(err)
			}
		}
		past := time.Now().Add(-time.Hour)
		if _, err := repo.MarkCaptured(ctx, nil, stale.ID, "pay_F", past); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.MarkCaptured(ctx, nil, done.ID, "pay_G", past); err != nil {
			t.Fatal(err)
		}
		done.Capture("pay_G", past)
		act, _ := model.NewActivation(done, model.NewSubscriptionWindow(past), past)
		if err := NewOrderRepo(testPool).Activate(ctx, nil, act); err != nil {
			t.Fatal(err)
		}

		got, err := repo.ListCapturedNotActivated(ctx, nil, time.Now().Add(-time.Minute), 10)
		if err != nil {
			t.Fatalf("ListCapturedNotActivated failed: %v", err)
		}
		if len(got) != 1 || got[0].OrderFormID != "amc-4" {
			t.Fatalf("expected only amc-4, got %+v", got)
		}
	})
}

func TestOrderRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewOrderRepo(testPool)

	t.Run("should activate with a 365 day window", func(t *testing.T) {
		cleanup(t)
		seedOrder(t, "amc-10")
		p := newIntent(t, "amc-10", "order_H", 2)
		now := time.Now()
		if err := p.Capture("pay_H", now); err != nil {
			t.Fatal(err)
		}
		window := model.NewSubscriptionWindow(now)
		act, err := model.NewActivation(p, window, now)
		if err != nil {
			t.Fatal(err)
		}

		if err := repo.Activate(ctx, nil, act); err != nil {
			t.Fatalf("Activate failed: %v", err)
		}
		o, err := repo.FindByID(ctx, nil, "amc-10")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if !o.IsActive() || o.PaymentStatus != model.OrderPaymentPaid || o.PaymentID != "pay_H" || o.Amount != 1998 {
			t.Errorf("unexpected order: %+v", o)
		}
		if !o.SubscriptionStartDate.Equal(window.Start) || !o.SubscriptionEndDate.Equal(window.End) {
			t.Errorf("window mismatch: %v..%v", o.SubscriptionStartDate, o.SubscriptionEndDate)
		}
	})

	t.Run("should report a missing order", func(t *testing.T) {
		cleanup(t)
		p := newIntent(t, "amc-missing", "order_I", 1)
		_ = p.Capture("pay_I", time.Now())
		act, _ := model.NewActivation(p, model.NewSubscriptionWindow(time.Now()), time.Now())
		if err := repo.Activate(ctx, nil, act); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := repo.FindByID(ctx, nil, "amc-missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("should lock the order row inside a transaction", func(t *testing.T) {
		cleanup(t)
		seedOrder(t, "amc-11")
		tm := NewTxManager(testPool)
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			o, err := repo.FindByID(ctx, tx, "amc-11")
			if err != nil {
				return err
			}
			if o.Status != model.OrderStatusNew {
				t.Errorf("expected new order, got %s", o.Status)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}
	})
}

func TestInvoiceRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewInvoiceRepo(testPool)

	activation := func(paymentID string) model.Activation {
		p := newIntent(t, "amc-20", "order_"+paymentID, 1)
		_ = p.Capture(paymentID, time.Now())
		act, _ := model.NewActivation(p, model.NewSubscriptionWindow(time.Now()), time.Now())
		return act
	}

	t.Run("should issue one invoice per payment", func(t *testing.T) {
		cleanup(t)
		inv, _ := model.NewInvoice(activation("pay_J"))
		created, err := repo.Create(ctx, nil, inv)
		if err != nil || !created {
			t.Fatalf("expected created invoice, got created=%v err=%v", created, err)
		}
		dup, _ := model.NewInvoice(activation("pay_J"))
		created, err = repo.Create(ctx, nil, dup)
		if err != nil || created {
			t.Fatalf("expected silent duplicate, got created=%v err=%v", created, err)
		}
		got, err := repo.FindByPaymentID(ctx, nil, "pay_J")
		if err != nil {
			t.Fatalf("FindByPaymentID failed: %v", err)
		}
		if got.InvoiceNumber != inv.InvoiceNumber {
			t.Errorf("expected %s, got %s", inv.InvoiceNumber, got.InvoiceNumber)
		}
	})

	t.Run("should report a taken invoice number", func(t *testing.T) {
		cleanup(t)
		a, _ := model.NewInvoice(activation("pay_K"))
		if _, err := repo.Create(ctx, nil, a); err != nil {
			t.Fatal(err)
		}
		b, _ := model.NewInvoice(activation("pay_L"))
		b.InvoiceNumber = a.InvoiceNumber
		if _, err := repo.Create(ctx, nil, b); !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestAuditLogRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewAuditLogRepo(testPool)
	cleanup(t)

	p := newIntent(t, "amc-30", "order_M", 1)
	_ = p.Capture("pay_M", time.Now())
	act, _ := model.NewActivation(p, model.NewSubscriptionWindow(time.Now()), time.Now())
	entry := model.NewAuditLogEntry(act, model.AuditActionPaymentCaptured, model.ActorCustomer, map[string]any{"system_count": 1})

	if err := repo.Append(ctx, nil, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	var action string
	var systems int
	err := testPool.QueryRow(ctx,
		`SELECT action, (details->>'system_count')::int FROM audit_logs WHERE order_form_id=$1`, "amc-30").
		Scan(&action, &systems)
	if err != nil {
		t.Fatalf("read audit row: %v", err)
	}
	if action != string(model.AuditActionPaymentCaptured) || systems != 1 {
		t.Fatalf("unexpected audit row: action=%s systems=%d", action, systems)
	}
}
