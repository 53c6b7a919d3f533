package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// NotificationRepository stores user-visible notifications
type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Save inserts n. A notification whose id is already stored is left as is,
// which makes redelivery of one event harmless.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	var title *string
	if n.ItemTitle != "" {
		title = &n.ItemTitle
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, message, item_id, item_title, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		n.ID, n.UserID, string(n.Type), n.Message, n.ItemID, title, n.IsRead, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("save notification %s: %w", n.ID, wrapError(err))
	}
	return nil
}

// ListForUser returns a user's newest notifications first
func (r *NotificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, type, message, item_id, coalesce(item_title, ''), is_read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*notification.Notification
	for rows.Next() {
		var (
			n   notification.Notification
			typ string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &typ, &n.Message, &n.ItemID, &n.ItemTitle, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = notification.Type(typ)
		out = append(out, &n)
	}
	return out, rows.Err()
}
