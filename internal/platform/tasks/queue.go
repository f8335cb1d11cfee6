package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 30 * time.Second
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("tasks: queue closed")

type task struct {
	name string
	ctx  context.Context
	fn   func(context.Context) error
}

// Queue runs best-effort work on a fixed pool of workers. Producers never block: when the buffer
// is full the task is dropped and logged.
type Queue struct {
	logger  *zap.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan task
	group  *errgroup.Group

	completed metric.Int64Counter
	failed    metric.Int64Counter
	dropped   metric.Int64Counter
}

// Options sizes the queue. Zero values fall back to defaults.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// New starts the workers.
func New(opts Options) *Queue {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	meter := otel.Meter("github.com/friperie/api/internal/platform/tasks")
	completed, _ := meter.Int64Counter("marketplace.tasks.completed")
	failed, _ := meter.Int64Counter("marketplace.tasks.failed")
	dropped, _ := meter.Int64Counter("marketplace.tasks.dropped")

	q := &Queue{
		logger:    opts.Logger.Named("tasks"),
		timeout:   opts.Timeout,
		ch:        make(chan task, opts.QueueSize),
		group:     new(errgroup.Group),
		completed: completed,
		failed:    failed,
		dropped:   dropped,
	}
	for range opts.Workers {
		q.group.Go(q.work)
	}
	return q
}

// Enqueue hands fn to a worker. The task inherits ctx values but not its cancellation, so it
// survives the end of the request that scheduled it.
func (q *Queue) Enqueue(ctx context.Context, name string, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop(ctx, name, "closed")
		return false
	}
	select {
	case q.ch <- task{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
		return true
	default:
		q.drop(ctx, name, "full")
		return false
	}
}

func (q *Queue) drop(ctx context.Context, name, reason string) {
	q.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("task", name), attribute.String("reason", reason)))
	q.logger.Warn("task dropped", zap.String("task", name), zap.String("reason", reason))
}

func (q *Queue) work() error {
	for t := range q.ch {
		q.run(t)
	}
	return nil
}

func (q *Queue) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, q.timeout)
	defer cancel()
	attrs := metric.WithAttributes(attribute.String("task", t.name))
	start := time.Now()

	err := safeCall(ctx, t.fn)
	if err != nil {
		q.failed.Add(ctx, 1, attrs)
		q.logger.Error("task failed", zap.String("task", t.name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	q.completed.Add(ctx, 1, attrs)
}

func safeCall(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tasks: panic: %v", rec)
		}
	}()
	return fn(ctx)
}

// Close stops accepting tasks and waits for queued ones to finish, or for ctx to expire.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- q.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("tasks: drain: %w", ctx.Err())
	}
}
