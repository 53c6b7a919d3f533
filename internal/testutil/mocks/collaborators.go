package mocks

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// EventRecorder captures published events in order.
type EventRecorder struct {
	mu     sync.Mutex
	events []notification.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

func (r *EventRecorder) Publish(_ context.Context, events ...notification.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *EventRecorder) Events() []notification.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *EventRecorder) OfType(t notification.Type) []notification.Event {
	var out []notification.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *EventRecorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// NoopMetrics satisfies every service metrics collector and records nothing.
type NoopMetrics struct{}

func NewNoopMetrics() *NoopMetrics { return &NoopMetrics{} }

func (NoopMetrics) RecordBidPlaced(context.Context, values.Money)            {}
func (NoopMetrics) RecordBidRejected(context.Context, string)                {}
func (NoopMetrics) RecordFinalization(context.Context, string)               {}
func (NoopMetrics) RecordPayment(context.Context, values.Money, values.Money) {}
func (NoopMetrics) RecordAssignment(context.Context, string)                 {}
func (NoopMetrics) RecordAssignmentRejected(context.Context, string)         {}
func (NoopMetrics) RecordDecision(context.Context, string)                   {}
func (NoopMetrics) RecordDelivery(context.Context, string, error)            {}

// NotificationStore mock
type NotificationStore struct {
	mock.Mock
}

func (m *NotificationStore) Save(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// PushGateway mock
type PushGateway struct {
	mock.Mock
}

func (m *PushGateway) Emit(ctx context.Context, event string, payload any, userID uuid.UUID) error {
	args := m.Called(ctx, event, payload, userID)
	return args.Error(0)
}

// Mailer mock
type Mailer struct {
	mock.Mock
}

func (m *Mailer) Send(ctx context.Context, to *account.User, n *notification.Notification) error {
	args := m.Called(ctx, to, n)
	return args.Error(0)
}

// SequenceRand returns the configured values in turn, modulo n.
type SequenceRand struct {
	mu     sync.Mutex
	values []int
	next   int
}

func NewSequenceRand(values ...int) *SequenceRand {
	return &SequenceRand{values: values}
}

func (r *SequenceRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		return 0
	}
	v := r.values[r.next%len(r.values)]
	r.next++
	return v % n
}
