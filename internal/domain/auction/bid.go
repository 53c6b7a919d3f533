package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Bid is an accepted offer. Bids are append-only; an item's bids are
// strictly increasing in amount in the order they were accepted.
type Bid struct {
	ID       uuid.UUID    `json:"id"`
	ItemID   uuid.UUID    `json:"item_id"`
	BidderID uuid.UUID    `json:"bidder_id"`
	Amount   values.Money `json:"amount"`
	PlacedAt time.Time    `json:"placed_at"`
}

func NewBid(itemID, bidderID uuid.UUID, amount values.Money, now time.Time) *Bid {
	return &Bid{
		ID:       uuid.New(),
		ItemID:   itemID,
		BidderID: bidderID,
		Amount:   amount,
		PlacedAt: now,
	}
}

// ValidateBid checks a candidate bid against the item and the current
// highest bid (nil when there is none). Every rejection is a validation
// error with a stable code.
func (i *Item) ValidateBid(bidderID uuid.UUID, amount values.Money, highest *Bid, now time.Time) error {
	if bidderID == i.SellerID {
		return errors.NewValidationError("SELLER_CANNOT_BID", "sellers cannot bid on their own items")
	}
	if i.Status != StatusOpen || i.HasEnded(now) {
		return errors.NewValidationError("AUCTION_ENDED", "auction has ended")
	}
	if !i.HasStarted(now) {
		return errors.NewValidationError("AUCTION_NOT_STARTED", "auction has not started yet")
	}
	if !amount.IsPositive() {
		return errors.NewValidationError("INVALID_AMOUNT", "bid amount must be positive")
	}
	cmp, err := amount.Cmp(i.MinimumPrice)
	if err != nil {
		return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
	}
	if cmp < 0 {
		return errors.NewValidationError("BELOW_MINIMUM",
			"bid must be at least the minimum price of "+i.MinimumPrice.String())
	}
	if highest != nil {
		cmp, err = amount.Cmp(highest.Amount)
		if err != nil {
			return errors.NewValidationError("CURRENCY_MISMATCH", err.Error())
		}
		if cmp <= 0 {
			return errors.NewValidationError("BID_TOO_LOW",
				"bid must be higher than the current highest bid of "+highest.Amount.String())
		}
	}
	return nil
}
