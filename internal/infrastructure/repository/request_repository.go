package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
)

// RequestRepository persists authentication requests
type RequestRepository struct {
	db *pgxpool.Pool
}

func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `r.id, r.item_id, r.requester_id, r.status, r.created_at, r.updated_at`

func scanRequest(row pgx.Row) (*authentication.Request, error) {
	var (
		req    authentication.Request
		status string
	)
	err := row.Scan(&req.ID, &req.ItemID, &req.RequesterID, &status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	if req.Status, err = authentication.ParseRequestStatus(status); err != nil {
		return nil, err
	}
	return &req, nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*authentication.Request, error) {
	req, err := scanRequest(r.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM authentication_requests r WHERE r.id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return req, nil
}

// ListPendingEnded returns pending requests whose item's auction ended at or before now
func (r *RequestRepository) ListPendingEnded(ctx context.Context, now time.Time) ([]*authentication.Request, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+requestColumns+`
		FROM authentication_requests r
		JOIN items i ON i.id = r.item_id
		WHERE r.status = 'pending' AND i.auction_end <= $1
		ORDER BY i.auction_end, r.id`, now)
	if err != nil {
		return nil, fmt.Errorf("list ended pending requests: %w", err)
	}
	return collect(rows, scanRequest)
}

// CancelPending cancels a pending request together with its notified
// assignments. It reports false when the request had already left pending.
func (r *RequestRepository) CancelPending(ctx context.Context, requestID uuid.UUID, at time.Time) (bool, error) {
	cancelled := false
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE authentication_requests SET status = 'cancelled', updated_at = $2
			WHERE id = $1 AND status = 'pending'`, requestID, at)
		if err != nil || tag.RowsAffected() == 0 {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE expert_assignments SET status = 'cancelled', updated_at = $2
			WHERE request_id = $1 AND status = 'notified'`, requestID, at)
		cancelled = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("cancel request %s: %w", requestID, err)
	}
	return cancelled, nil
}

// IsAuthenticated reports whether an expert approved the item
func (r *RequestRepository) IsAuthenticated(ctx context.Context, itemID uuid.UUID) (bool, error) {
	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM authentication_requests WHERE item_id = $1 AND status = 'approved'
		)`, itemID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check authentication for item %s: %w", itemID, err)
	}
	return ok, nil
}
