package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"amc-subscription/internal/domain/ports/repository"
	"amc-subscription/internal/domain/ports/usecase"
	"amc-subscription/internal/infra/metrics"
	"amc-subscription/internal/infra/redis"
)

const reconcilerLockKey = "lock:activation-reconciler"

// Locker is the distributed mutex that keeps one reconciler active across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
	Refresh(ctx context.Context, key, token string, ttl time.Duration) error
}

// ActivationReconciler periodically replays activation for payments that were
// captured but whose order never became active, e.g. when the process died
// between the capture and the order update.
type ActivationReconciler struct {
	intents  repository.PaymentIntentRepository
	activate usecase.Activator
	locker   Locker // optional; nil runs without cross-instance exclusion
	interval time.Duration
	grace    time.Duration
	batch    int
	log      *zerolog.Logger
	now      func() time.Time
}

func NewActivationReconciler(
	intents repository.PaymentIntentRepository,
	activate usecase.Activator,
	locker Locker,
	interval, grace time.Duration,
	batch int,
	logger *zerolog.Logger,
) *ActivationReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if grace <= 0 {
		grace = 5 * time.Minute
	}
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "ActivationReconciler").Logger()
	return &ActivationReconciler{
		intents:  intents,
		activate: activate,
		locker:   locker,
		interval: interval,
		grace:    grace,
		batch:    batch,
		log:      &l,
		now:      time.Now,
	}
}

func (r *ActivationReconciler) Start(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Dur("grace", r.grace).Msg("activation reconciler started")
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("activation reconciler stopping")
			return
		case <-t.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass and returns how many orders were replayed.
// The lock lives for one interval and is extended while a long batch runs;
// once it is lost the pass stops.
func (r *ActivationReconciler) Tick(ctx context.Context) int {
	start := r.now()
	var token string
	if r.locker != nil {
		var err error
		token, err = r.locker.TryLock(ctx, reconcilerLockKey, r.interval)
		if err != nil {
			if !errors.Is(err, redis.ErrLockHeld) {
				r.log.Warn().Err(err).Msg("reconciler lock not acquired")
			}
			return 0
		}
		defer func() {
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := r.locker.Unlock(uctx, reconcilerLockKey, token); err != nil {
				r.log.Warn().Err(err).Msg("reconciler lock release failed")
			}
		}()
	}

	stale, err := r.intents.ListCapturedNotActivated(ctx, nil, start.Add(-r.grace), r.batch)
	if err != nil {
		r.log.Error().Err(err).Msg("list captured payments without activation")
		return 0
	}
	replayed := 0
	lockedAt := start
	for _, intent := range stale {
		if ctx.Err() != nil {
			break
		}
		if err := r.activate.ReplayActivation(ctx, intent); err != nil {
			metrics.IncReconciled("failed", 1)
			r.log.Error().Err(err).
				Str("order_form_id", intent.OrderFormID).
				Str("gateway_order_id", intent.GatewayOrderID).
				Msg("activation replay failed")
		} else {
			replayed++
		}
		if r.locker != nil && r.now().Sub(lockedAt) >= r.interval/2 {
			if err := r.locker.Refresh(ctx, reconcilerLockKey, token, r.interval); err != nil {
				r.log.Warn().Err(err).Msg("reconciler lock lost; stopping pass")
				break
			}
			lockedAt = r.now()
		}
	}
	metrics.IncReconciled("replayed", replayed)
	if len(stale) > 0 {
		r.log.Info().Int("found", len(stale)).Int("replayed", replayed).Msg("reconciliation pass finished")
	}
	return replayed
}
