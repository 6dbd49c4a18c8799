package repository

import (
	"context"

	"amc-subscription/internal/domain/model"
)

// OrderRepository is the port for AMC order forms. Only payment and activation
// columns are written here.
type OrderRepository interface {
	FindByID(ctx context.Context, tx Tx, orderFormID string) (*model.Order, error)
	// Activate writes a verified activation. Returns domain.ErrNotFound when the
	// order form does not exist.
	Activate(ctx context.Context, tx Tx, a model.Activation) error
}
