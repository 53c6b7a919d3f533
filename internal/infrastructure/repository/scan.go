package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// NUMERIC columns are selected as text and parsed with decimal so no
// precision is lost on the way through the driver.
func parseMoney(amount, currency string) (values.Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return values.Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return values.NewMoney(d, currency)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// collect scans every row with fn and closes rows.
func collect[T any](rows pgx.Rows, fn func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
