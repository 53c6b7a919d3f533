package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Payment records the buyer settling a won auction. The platform keeps a
// percentage of the hammer price as its fee.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	ItemID     uuid.UUID       `json:"item_id"`
	BidID      uuid.UUID       `json:"bid_id"`
	PayerID    uuid.UUID       `json:"payer_id"`
	Reference  string          `json:"reference"`
	Amount     values.Money    `json:"amount"`
	FeePercent decimal.Decimal `json:"fee_percent"`
	FeeAmount  values.Money    `json:"fee_amount"`
	PaidAt     time.Time       `json:"paid_at"`
}

// FeeSchedule holds the platform fee percentages.
type FeeSchedule struct {
	BasePercent          decimal.Decimal
	AuthenticatedPercent decimal.Decimal
}

func DefaultFeeSchedule() FeeSchedule {
	return FeeSchedule{
		BasePercent:          decimal.NewFromInt(1),
		AuthenticatedPercent: decimal.NewFromInt(5),
	}
}

// PercentFor returns the fee percentage for an item, higher when an expert
// approved its authenticity.
func (f FeeSchedule) PercentFor(authenticated bool) decimal.Decimal {
	if authenticated {
		return f.AuthenticatedPercent
	}
	return f.BasePercent
}

// NewPayment builds the payment for a Won item and its winning bid.
func NewPayment(item *Item, winning *Bid, reference string, feePercent decimal.Decimal, now time.Time) (*Payment, error) {
	if item.Status != StatusWon || item.WinningBidID == nil {
		return nil, errors.NewConflictError("ITEM_NOT_WON", "item is not awaiting payment")
	}
	if winning == nil || *item.WinningBidID != winning.ID {
		return nil, errors.NewConflictError("WINNING_BID_MISMATCH", "bid is not the winning bid for this item")
	}
	if reference == "" {
		return nil, errors.NewValidationError("MISSING_REFERENCE", "payment reference is required")
	}
	return &Payment{
		ID:         uuid.New(),
		ItemID:     item.ID,
		BidID:      winning.ID,
		PayerID:    winning.BidderID,
		Reference:  reference,
		Amount:     winning.Amount,
		FeePercent: feePercent,
		FeeAmount:  winning.Amount.Percent(feePercent),
		PaidAt:     now,
	}, nil
}
