package bidding

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Service defines the bidding and auction lifecycle operations
type Service interface {
	// PlaceBid validates and records a bid, notifying the bidder it displaced
	PlaceBid(ctx context.Context, req *PlaceBidRequest) (*auction.Bid, error)
	// Finalize closes an ended auction; a no-op for items already settled
	Finalize(ctx context.Context, itemID uuid.UUID) (*FinalizeResult, error)
	// FinalizeExpired finalizes every ended auction still open
	FinalizeExpired(ctx context.Context) (*SweepResult, error)
	// MarkPaid records the buyer's payment for a won item
	MarkPaid(ctx context.Context, itemID uuid.UUID, paymentRef string) (*auction.Payment, error)
	// HighestBid returns the current highest bid or nil when there is none
	HighestBid(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error)
	// ListBids returns an item's bids in acceptance order
	ListBids(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error)
}

// ItemRepository defines item storage. State transitions are conditional
// writes: they report false (or a sentinel error) instead of overwriting a
// state that changed underneath the caller.
type ItemRepository interface {
	// GetByID retrieves an item by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error)
	// ListExpiredOpen returns up to limit Open items whose auction ended at
	// or before now and that sort after the cursor, in (auction end, id) order
	ListExpiredOpen(ctx context.Context, now time.Time, after auction.SweepCursor, limit int) ([]*auction.Item, error)
	// ClaimWinner moves an Open item with no winner to Won, provided bidID
	// is still its highest bid
	ClaimWinner(ctx context.Context, itemID, bidID uuid.UUID, at time.Time) (bool, error)
	// MarkUnsold moves an Open item with no bids to Unsold
	MarkUnsold(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error)
	// RecordPayment moves a Won item to Paid and stores the payment in one
	// transaction; auction.ErrNotWon when the item is not Won
	RecordPayment(ctx context.Context, payment *auction.Payment) error
}

// BidRepository defines the bid ledger
type BidRepository interface {
	// CreateIfHigher stores b only if the item is open at b.PlacedAt and b
	// exceeds the current highest bid, returning the bid it displaced.
	// Fails with auction.ErrBidNotHigher or auction.ErrAuctionClosed.
	CreateIfHigher(ctx context.Context, b *auction.Bid) (*auction.Bid, error)
	// GetByID retrieves a bid by ID
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error)
	// HighestForItem returns the highest bid or nil
	HighestForItem(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error)
	// ListForItem returns bids in acceptance order
	ListForItem(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error)
}

// AuthenticationLookup tells whether an expert approved an item
type AuthenticationLookup interface {
	IsAuthenticated(ctx context.Context, itemID uuid.UUID) (bool, error)
}

// EventPublisher hands events to the notification dispatcher. It must not
// block and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, events ...notification.Event)
}

// MetricsCollector defines the interface for metrics collection
type MetricsCollector interface {
	RecordBidPlaced(ctx context.Context, amount values.Money)
	RecordBidRejected(ctx context.Context, reason string)
	RecordFinalization(ctx context.Context, outcome string)
	RecordPayment(ctx context.Context, amount, fee values.Money)
}

// PlaceBidRequest contains parameters for placing a bid
type PlaceBidRequest struct {
	ItemID   uuid.UUID
	BidderID uuid.UUID
	Amount   values.Money
}

// Finalization outcomes
const (
	OutcomeSold    = "sold"
	OutcomeUnsold  = "unsold"
	OutcomeSkipped = "skipped"
)

// FinalizeResult describes what a Finalize call did
type FinalizeResult struct {
	ItemID     uuid.UUID            `json:"item_id"`
	Outcome    string               `json:"outcome"`
	Status     auction.ItemStatus   `json:"status"`
	WinningBid *auction.Bid         `json:"winning_bid,omitempty"`
	Events     []notification.Event `json:"-"`
}

// Finalized is true when this call performed the transition.
func (r *FinalizeResult) Finalized() bool {
	return r.Outcome == OutcomeSold || r.Outcome == OutcomeUnsold
}

// SweepResult summarises one FinalizeExpired pass
type SweepResult struct {
	Scanned int `json:"scanned"`
	Sold    int `json:"sold"`
	Unsold  int `json:"unsold"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Config holds bidding service settings
type Config struct {
	Fees             auction.FeeSchedule
	SweepConcurrency int
	SweepBatchSize   int
}

func DefaultConfig() Config {
	return Config{
		Fees:             auction.DefaultFeeSchedule(),
		SweepConcurrency: 8,
		SweepBatchSize:   500,
	}
}
