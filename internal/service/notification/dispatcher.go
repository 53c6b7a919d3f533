package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// Dispatcher fans each event out to the store, the push gateway and the
// mailer. A failure on one channel is logged and counted and never reaches
// the other channels or the publisher.
type Dispatcher struct {
	store   Store
	push    PushGateway
	mailer  Mailer
	users   UserLookup
	metrics MetricsCollector
	logger  *zap.Logger
	cfg     Config

	queue    chan queued
	mu       sync.RWMutex
	started  bool
	stopped  bool
	workers  sync.WaitGroup
	inflight sync.WaitGroup

	delivered atomic.Int64
	overflow  atomic.Int64
}

type queued struct {
	ctx   context.Context
	event notification.Event
}

// Result reports the outcome per channel of one delivery. A nil error means
// the channel succeeded or is disabled.
type Result struct {
	Store error
	Push  error
	Email error
}

func NewDispatcher(
	store Store,
	push PushGateway,
	mailer Mailer,
	users UserLookup,
	metrics MetricsCollector,
	logger *zap.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	return &Dispatcher{
		store:   store,
		push:    push,
		mailer:  mailer,
		users:   users,
		metrics: metrics,
		logger:  logger.Named("dispatcher"),
		cfg:     cfg,
		queue:   make(chan queued, cfg.QueueSize),
	}
}

// Start launches the worker pool
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.workers.Add(1)
		go d.worker(i)
	}
	d.logger.Info("notification dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Stop drains the queue and waits for every delivery in flight
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for q := range d.queue {
			d.Deliver(q.ctx, q.event)
		}
	}
	d.workers.Wait()
	d.inflight.Wait()
	d.logger.Info("notification dispatcher stopped",
		zap.Int64("delivered", d.delivered.Load()),
		zap.Int64("overflow", d.overflow.Load()))
}

// Publish enqueues events without blocking. When the queue is full the
// event is delivered on its own goroutine instead of being dropped.
func (d *Dispatcher) Publish(ctx context.Context, events ...notification.Event) {
	ctx = context.WithoutCancel(ctx)

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, e := range events {
		if d.stopped {
			d.Deliver(ctx, e)
			continue
		}
		select {
		case d.queue <- queued{ctx: ctx, event: e}:
		default:
			d.overflow.Add(1)
			d.inflight.Add(1)
			go func(e notification.Event) {
				defer d.inflight.Done()
				d.Deliver(ctx, e)
			}(e)
		}
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.workers.Done()
	for q := range d.queue {
		d.Deliver(q.ctx, q.event)
	}
	d.logger.Debug("dispatch worker stopped", zap.Int("worker_id", id))
}

// Deliver performs the three channel actions for e synchronously.
func (d *Dispatcher) Deliver(ctx context.Context, e notification.Event) Result {
	if d.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
		defer cancel()
	}

	n := notification.FromEvent(e)
	var res Result

	res.Store = d.attempt(ctx, ChannelStore, e, func(ctx context.Context) error {
		return d.store.Save(ctx, n)
	})
	if d.cfg.PushEnabled {
		res.Push = d.attempt(ctx, ChannelPush, e, func(ctx context.Context) error {
			return d.push.Emit(ctx, notification.PushEventName, e, e.UserID)
		})
	}
	if d.cfg.EmailEnabled {
		res.Email = d.attempt(ctx, ChannelEmail, e, func(ctx context.Context) error {
			user, err := d.users.GetByID(ctx, e.UserID)
			if err != nil {
				return fmt.Errorf("lookup recipient: %w", err)
			}
			return d.mailer.Send(ctx, user, n)
		})
	}

	d.delivered.Add(1)
	return res
}

// attempt runs fn, converting a panic into an error.
func (d *Dispatcher) attempt(ctx context.Context, channel string, e notification.Event, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s delivery: %v", channel, r)
		}
		if err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("channel", channel),
				zap.String("event_id", e.ID.String()),
				zap.String("type", string(e.Type)),
				zap.String("user_id", e.UserID.String()),
				zap.Error(err))
		}
		d.metrics.RecordDelivery(ctx, channel, err)
	}()
	return fn(ctx)
}

// Stats reports counters since start
func (d *Dispatcher) Stats() (delivered, overflow int64, queued int) {
	return d.delivered.Load(), d.overflow.Load(), len(d.queue)
}
