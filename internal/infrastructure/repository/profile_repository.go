package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
)

// ProfileRepository reads expert availability and category expertise
type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// ListAvailability returns windows on days in [from, to] for each expert
func (r *ProfileRepository) ListAvailability(ctx context.Context, expertIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]authentication.Availability, error) {
	out := make(map[uuid.UUID][]authentication.Availability)
	if len(expertIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, expert_id, day, start_time, end_time, available
		FROM expert_availability
		WHERE expert_id = ANY($1::uuid[]) AND day BETWEEN $2 AND $3
		ORDER BY expert_id, day, start_time`,
		uuidStrings(expertIDs), auction.TruncateDay(from), auction.TruncateDay(to))
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			a          authentication.Availability
			start, end pgtype.Time
		)
		if err := rows.Scan(&a.ID, &a.ExpertID, &a.Day, &start, &end, &a.Available); err != nil {
			return nil, err
		}
		a.Day = auction.TruncateDay(a.Day)
		a.Start = time.Duration(start.Microseconds) * time.Microsecond
		a.End = time.Duration(end.Microseconds) * time.Microsecond
		out[a.ExpertID] = append(out[a.ExpertID], a)
	}
	return out, rows.Err()
}

// ListCategories returns the categories each expert is qualified in
func (r *ProfileRepository) ListCategories(ctx context.Context, expertIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	out := make(map[uuid.UUID][]uuid.UUID)
	if len(expertIDs) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT expert_id, category_id FROM expert_categories
		WHERE expert_id = ANY($1::uuid[])`, uuidStrings(expertIDs))
	if err != nil {
		return nil, fmt.Errorf("list expert categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expertID, categoryID uuid.UUID
		if err := rows.Scan(&expertID, &categoryID); err != nil {
			return nil, err
		}
		out[expertID] = append(out[expertID], categoryID)
	}
	return out, rows.Err()
}
