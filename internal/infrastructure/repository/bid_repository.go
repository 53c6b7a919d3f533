package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	domainerrors "github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
)

// BidRepository is the append-only bid ledger
type BidRepository struct {
	db *pgxpool.Pool
}

func NewBidRepository(db *pgxpool.Pool) *BidRepository {
	return &BidRepository{db: db}
}

const bidColumns = `id, item_id, bidder_id, amount::text, currency, placed_at`

func scanBid(row pgx.Row) (*auction.Bid, error) {
	var (
		b                auction.Bid
		amount, currency string
	)
	err := row.Scan(&b.ID, &b.ItemID, &b.BidderID, &amount, &currency, &b.PlacedAt)
	if err != nil {
		return nil, wrapError(err)
	}
	if b.Amount, err = parseMoney(amount, currency); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateIfHigher inserts b while holding the item row lock, so the open
// check, the highest-bid comparison and the insert see one consistent
// state. It returns the bid b displaced, or nil for the first bid.
func (r *BidRepository) CreateIfHigher(ctx context.Context, b *auction.Bid) (*auction.Bid, error) {
	var previous *auction.Bid
	err := pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var open bool
		err := tx.QueryRow(ctx,
			`SELECT status = 'open' AND auction_end > $2 FROM items WHERE id = $1 FOR UPDATE`,
			b.ItemID, b.PlacedAt).Scan(&open)
		if err != nil {
			return wrapError(err)
		}
		if !open {
			return auction.ErrAuctionClosed
		}

		top, err := scanBid(tx.QueryRow(ctx,
			`SELECT `+bidColumns+` FROM bids WHERE item_id = $1 ORDER BY amount DESC LIMIT 1`,
			b.ItemID))
		switch {
		case errors.Is(err, domainerrors.ErrRecordNotFound):
		case err != nil:
			return err
		case !b.Amount.Amount().GreaterThan(top.Amount.Amount()):
			return auction.ErrBidNotHigher
		default:
			previous = top
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO bids (id, item_id, bidder_id, amount, currency, placed_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, b.ItemID, b.BidderID, b.Amount.Amount(), b.Amount.Currency(), b.PlacedAt)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create bid on item %s: %w", b.ItemID, err)
	}
	return previous, nil
}

// GetByID retrieves a bid by ID
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error) {
	b, err := scanBid(r.db.QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get bid %s: %w", id, err)
	}
	return b, nil
}

// HighestForItem returns the item's highest bid, or nil when it has none
func (r *BidRepository) HighestForItem(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	b, err := scanBid(r.db.QueryRow(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE item_id = $1 ORDER BY amount DESC LIMIT 1`, itemID))
	if errors.Is(err, domainerrors.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("highest bid for item %s: %w", itemID, err)
	}
	return b, nil
}

// ListForItem returns bids in acceptance order. Amounts strictly increase
// in that order, so sorting by amount is stable across equal timestamps.
func (r *BidRepository) ListForItem(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bidColumns+` FROM bids WHERE item_id = $1 ORDER BY amount`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list bids for item %s: %w", itemID, err)
	}
	return collect(rows, scanBid)
}
