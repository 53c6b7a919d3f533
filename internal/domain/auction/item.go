package auction

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Item is a listing that runs exactly one time-boxed auction.
type Item struct {
	ID           uuid.UUID    `json:"id"`
	SellerID     uuid.UUID    `json:"seller_id"`
	CategoryID   uuid.UUID    `json:"category_id"`
	Title        string       `json:"title"`
	MinimumPrice values.Money `json:"minimum_price"`
	AuctionStart time.Time    `json:"auction_start"`
	AuctionEnd   time.Time    `json:"auction_end"`
	Status       ItemStatus   `json:"status"`
	WinningBidID *uuid.UUID   `json:"winning_bid_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type ItemStatus int

const (
	StatusOpen ItemStatus = iota
	StatusWon
	StatusPaid
	// StatusUnsold is an auction that closed without any bid. Terminal.
	StatusUnsold
)

func (s ItemStatus) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusWon:
		return "won"
	case StatusPaid:
		return "paid"
	case StatusUnsold:
		return "unsold"
	default:
		return "unknown"
	}
}

func ParseItemStatus(s string) (ItemStatus, error) {
	switch s {
	case "open":
		return StatusOpen, nil
	case "won":
		return StatusWon, nil
	case "paid":
		return StatusPaid, nil
	case "unsold":
		return StatusUnsold, nil
	default:
		return 0, fmt.Errorf("unknown item status %q", s)
	}
}

func (s ItemStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ItemStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseItemStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// HasStarted reports whether bids may be placed yet.
func (i *Item) HasStarted(now time.Time) bool {
	return !now.Before(i.AuctionStart)
}

// HasEnded reports whether the auction window is over. The end instant
// itself counts as ended.
func (i *Item) HasEnded(now time.Time) bool {
	return !now.Before(i.AuctionEnd)
}

// EndDate is the calendar day the auction ends on, at midnight UTC.
func (i *Item) EndDate() time.Time {
	return TruncateDay(i.AuctionEnd)
}

// ReadyToFinalize is true only for an Open item whose auction has ended.
func (i *Item) ReadyToFinalize(now time.Time) bool {
	return i.Status == StatusOpen && i.HasEnded(now)
}

// TruncateDay drops the time-of-day part of t in UTC.
func TruncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
