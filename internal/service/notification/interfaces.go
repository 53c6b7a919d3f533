package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// Delivery channels
const (
	ChannelStore = "store"
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// Store persists user-visible notifications. Saving the same notification
// id twice must not create a duplicate.
type Store interface {
	Save(ctx context.Context, n *notification.Notification) error
}

// PushGateway delivers a named event to a user's real-time channel
type PushGateway interface {
	Emit(ctx context.Context, event string, payload any, userID uuid.UUID) error
}

// Mailer requests an email for a notification
type Mailer interface {
	Send(ctx context.Context, to *account.User, n *notification.Notification) error
}

// UserLookup resolves recipients for email
type UserLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// MetricsCollector defines the interface for metrics collection
type MetricsCollector interface {
	RecordDelivery(ctx context.Context, channel string, err error)
}

// Config holds dispatcher settings
type Config struct {
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
	PushEnabled     bool
	EmailEnabled    bool
}

func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueSize:       1024,
		DeliveryTimeout: 10 * time.Second,
		PushEnabled:     true,
		EmailEnabled:    true,
	}
}
