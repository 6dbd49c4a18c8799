package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNilTask   = errors.New("nil task")
	ErrPoolFull  = errors.New("worker queue full")
	ErrPoolClose = errors.New("worker pool stopped")
)

// Task is one unit of work run by a pool worker.
type Task func(ctx context.Context) error

// Pool runs submitted tasks on a fixed number of goroutines.
type Pool struct {
	wg   sync.WaitGroup
	jobs chan Task
	quit chan struct{}
	once sync.Once
	n    int
	log  *zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := logger.With().Str("component", "WorkerPool").Logger()
	return &Pool{jobs: make(chan Task, workers), quit: make(chan struct{}), n: workers, log: &l}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return p.n }

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Int("worker", id).Err(err).Msg("task error")
	}
}

// Stop signals the workers and waits for in-flight tasks to return.
func (p *Pool) Stop() {
	p.once.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit enqueues without blocking and fails with ErrPoolFull when saturated.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until a worker accepts the task, ctx ends or the pool stops.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case <-p.quit:
		return ErrPoolClose
	default:
	}
	select {
	case p.jobs <- task:
		return nil
	case <-p.quit:
		return ErrPoolClose
	case <-ctx.Done():
		return ctx.Err()
	}
}
