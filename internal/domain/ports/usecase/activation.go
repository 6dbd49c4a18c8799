package usecase

import (
	"context"

	"amc-subscription/internal/domain/model"
)

// Activator replays the activation of a captured payment. Background workers use
// it to recover orders left captured-but-not-activated.
type Activator interface {
	ReplayActivation(ctx context.Context, intent *model.PaymentIntent) error
}
