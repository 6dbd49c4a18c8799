package adapter

import (
	"context"

	"amc-subscription/internal/domain/model"
)

// DocumentQueue accepts document jobs for asynchronous, at-least-once delivery.
type DocumentQueue interface {
	Enqueue(ctx context.Context, job *model.DocumentJob) error
}

// DocumentGenerator triggers invoice rendering and customer email for a job.
type DocumentGenerator interface {
	Generate(ctx context.Context, job *model.DocumentJob) error
}
