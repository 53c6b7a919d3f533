package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
)

// ItemRepository persists items and their auction state. Every state
// transition locks the item row first, the same lock bid insertion takes,
// so a transition never races a bid.
type ItemRepository struct {
	db *pgxpool.Pool
}

func NewItemRepository(db *pgxpool.Pool) *ItemRepository {
	return &ItemRepository{db: db}
}

const itemColumns = `id, seller_id, category_id, title, minimum_price::text, currency,
	auction_start, auction_end, status, winning_bid_id, created_at, updated_at`

func scanItem(row pgx.Row) (*auction.Item, error) {
	var (
		item             auction.Item
		amount, currency string
		status           string
	)
	err := row.Scan(
		&item.ID, &item.SellerID, &item.CategoryID, &item.Title, &amount, &currency,
		&item.AuctionStart, &item.AuctionEnd, &status, &item.WinningBidID,
		&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	if item.MinimumPrice, err = parseMoney(amount, currency); err != nil {
		return nil, err
	}
	if item.Status, err = auction.ParseItemStatus(status); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetByID retrieves an item by ID
func (r *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	item, err := scanItem(r.db.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

// ListExpiredOpen returns up to limit open items whose auction ended at or
// before now and that sort after the cursor, oldest end first. A limit of
// zero means no limit.
func (r *ItemRepository) ListExpiredOpen(ctx context.Context, now time.Time, after auction.SweepCursor, limit int) ([]*auction.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items
		WHERE status = 'open' AND auction_end <= $1`
	args := []any{now}
	if !after.IsZero() {
		query += ` AND (auction_end, id) > ($2, $3)`
		args = append(args, after.AuctionEnd, after.ItemID)
	}
	query += ` ORDER BY auction_end, id`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired items: %w", err)
	}
	return collect(rows, scanItem)
}

// lockOpen locks the item row and reports whether it is still open with no
// winner recorded.
func lockOpen(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) (bool, error) {
	var open bool
	err := tx.QueryRow(ctx,
		`SELECT status = 'open' AND winning_bid_id IS NULL FROM items WHERE id = $1 FOR UPDATE`,
		itemID).Scan(&open)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return open, err
}

// ClaimWinner moves an open item to won with bidID as the winning bid,
// provided bidID is still the item's highest bid.
func (r *ItemRepository) ClaimWinner(ctx context.Context, itemID, bidID uuid.UUID, at time.Time) (bool, error) {
	claimed := false
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		open, err := lockOpen(ctx, tx, itemID)
		if err != nil || !open {
			return err
		}

		var top uuid.UUID
		err = tx.QueryRow(ctx,
			`SELECT id FROM bids WHERE item_id = $1 ORDER BY amount DESC LIMIT 1`,
			itemID).Scan(&top)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && top != bidID) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE items SET status = 'won', winning_bid_id = $2, updated_at = $3 WHERE id = $1`,
			itemID, bidID, at)
		claimed = err == nil
		return err
	})
	if err != nil {
		return false, fmt.Errorf("claim winner for item %s: %w", itemID, err)
	}
	return claimed, nil
}

// MarkUnsold moves an open item that never received a bid to unsold
func (r *ItemRepository) MarkUnsold(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	marked := false
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		open, err := lockOpen(ctx, tx, itemID)
		if err != nil || !open {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE items SET status = 'unsold', updated_at = $2
			WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM bids WHERE item_id = $1)`,
			itemID, at)
		marked = err == nil && tag.RowsAffected() == 1
		return err
	})
	if err != nil {
		return false, fmt.Errorf("mark item %s unsold: %w", itemID, err)
	}
	return marked, nil
}

// RecordPayment moves a won item to paid and stores the payment in one
// transaction.
func (r *ItemRepository) RecordPayment(ctx context.Context, p *auction.Payment) error {
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE items SET status = 'paid', updated_at = $2 WHERE id = $1 AND status = 'won'`,
			p.ItemID, p.PaidAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return auction.ErrNotWon
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO payments (id, item_id, bid_id, payer_id, reference, amount, currency,
				fee_percent, fee_amount, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			p.ID, p.ItemID, p.BidID, p.PayerID, p.Reference,
			p.Amount.Amount(), p.Amount.Currency(), p.FeePercent, p.FeeAmount.Amount(), p.PaidAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("record payment for item %s: %w", p.ItemID, wrapError(err))
	}
	return nil
}
