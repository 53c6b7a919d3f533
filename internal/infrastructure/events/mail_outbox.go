package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// MailJob is one email for the external mail worker
type MailJob struct {
	NotificationID uuid.UUID `json:"notification_id"`
	To             string    `json:"to"`
	Username       string    `json:"username"`
	Subject        string    `json:"subject"`
	Body           string    `json:"body"`
	QueuedAt       time.Time `json:"queued_at"`
}

// MailOutbox queues emails on a Redis list. The mail worker pops from the
// other end, so jobs are sent oldest first.
type MailOutbox struct {
	client  *redis.Client
	key     string
	baseURL string
	now     func() time.Time
}

// NewMailOutbox builds an outbox on list key. baseURL is used for item
// links in the body and may be empty.
func NewMailOutbox(client *redis.Client, key, baseURL string) *MailOutbox {
	return &MailOutbox{client: client, key: key, baseURL: baseURL, now: time.Now}
}

// Send queues an email about n for to
func (o *MailOutbox) Send(ctx context.Context, to *account.User, n *notification.Notification) error {
	if to.Email == "" {
		return fmt.Errorf("user %s has no email address", to.ID)
	}
	data, err := json.Marshal(MailJob{
		NotificationID: n.ID,
		To:             to.Email,
		Username:       to.Username,
		Subject:        n.Subject(),
		Body:           n.Body(o.baseURL),
		QueuedAt:       o.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal mail job: %w", err)
	}
	if err := o.client.LPush(ctx, o.key, data).Err(); err != nil {
		return fmt.Errorf("failed to queue mail: %w", err)
	}
	return nil
}

// Depth returns the number of queued jobs
func (o *MailOutbox) Depth(ctx context.Context) (int64, error) {
	return o.client.LLen(ctx, o.key).Result()
}
