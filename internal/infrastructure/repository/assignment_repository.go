package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
)

// AssignmentRepository persists expert assignments and their opening
// messages. The partial unique index on request_id over the active
// statuses is what enforces one active assignment per request.
type AssignmentRepository struct {
	db *pgxpool.Pool
}

func NewAssignmentRepository(db *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = `id, request_id, expert_id, assigned_at, status, updated_at`

func scanAssignment(row pgx.Row) (*authentication.Assignment, error) {
	var (
		a      authentication.Assignment
		status string
	)
	err := row.Scan(&a.ID, &a.RequestID, &a.ExpertID, &a.AssignedAt, &status, &a.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	if a.Status, err = authentication.ParseAssignmentStatus(status); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create stores a notified assignment and the expert's opening message.
// The request row stays locked until commit so a concurrent cancellation
// either sees the new assignment or makes Create fail with ErrStaleState.
func (r *AssignmentRepository) Create(ctx context.Context, a *authentication.Assignment, opening *authentication.Message) error {
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `
			SELECT id FROM authentication_requests
			WHERE id = $1 AND status = 'pending'
			FOR UPDATE`, a.RequestID).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return authentication.ErrStaleState
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO expert_assignments (id, request_id, expert_id, assigned_at, status, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.RequestID, a.ExpertID, a.AssignedAt, a.Status.String(), a.UpdatedAt)
		if IsDuplicateKeyViolation(err) {
			return authentication.ErrActiveAssignmentExists
		}
		if err != nil || opening == nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO messages (id, request_id, sender_id, text, sent_at)
			VALUES ($1, $2, $3, $4, $5)`,
			opening.ID, opening.RequestID, opening.SenderID, opening.Text, opening.SentAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("create assignment for request %s: %w", a.RequestID, err)
	}
	return nil
}

// GetByID retrieves an assignment by ID
func (r *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*authentication.Assignment, error) {
	a, err := scanAssignment(r.db.QueryRow(ctx,
		`SELECT `+assignmentColumns+` FROM expert_assignments WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get assignment %s: %w", id, err)
	}
	return a, nil
}

// ListByRequest returns a request's assignment history, oldest first
func (r *AssignmentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*authentication.Assignment, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+assignmentColumns+` FROM expert_assignments
		WHERE request_id = $1 ORDER BY assigned_at, id`, requestID)
	if err != nil {
		return nil, fmt.Errorf("list assignments for request %s: %w", requestID, err)
	}
	return collect(rows, scanAssignment)
}

// CountByExpert counts assignments per expert among statuses. Experts with
// no matching assignment are absent from the map.
func (r *AssignmentRepository) CountByExpert(ctx context.Context, statuses []authentication.AssignmentStatus) (map[uuid.UUID]int, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}

	rows, err := r.db.Query(ctx, `
		SELECT expert_id, count(*) FROM expert_assignments
		WHERE status = ANY($1::text[])
		GROUP BY expert_id`, names)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id uuid.UUID
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// Complete records the expert's verdict: the assignment moves to completed
// and the request to outcome, or neither changes.
func (r *AssignmentRepository) Complete(ctx context.Context, assignmentID, requestID uuid.UUID, outcome authentication.RequestStatus, at time.Time) error {
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE expert_assignments SET status = 'completed', updated_at = $3
			WHERE id = $1 AND request_id = $2 AND status = 'notified'`,
			assignmentID, requestID, at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authentication.ErrStaleState
		}

		tag, err = tx.Exec(ctx, `
			UPDATE authentication_requests SET status = $2, updated_at = $3
			WHERE id = $1 AND status = 'pending'`,
			requestID, outcome.String(), at)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return authentication.ErrStaleState
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("complete assignment %s: %w", assignmentID, err)
	}
	return nil
}

// MarkReassigned releases a notified assignment
func (r *AssignmentRepository) MarkReassigned(ctx context.Context, assignmentID uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE expert_assignments SET status = 'reassigned', updated_at = $2
		WHERE id = $1 AND status = 'notified'`, assignmentID, at)
	if err != nil {
		return fmt.Errorf("reassign assignment %s: %w", assignmentID, err)
	}
	if tag.RowsAffected() == 0 {
		return authentication.ErrStaleState
	}
	return nil
}
