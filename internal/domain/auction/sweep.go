package auction

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// SweepCursor is the position of a finalization sweep in the (auction end,
// id) order of expired items. The zero value is before every item.
type SweepCursor struct {
	AuctionEnd time.Time
	ItemID     uuid.UUID
}

// CursorAfter returns the cursor positioned on item
func CursorAfter(item *Item) SweepCursor {
	return SweepCursor{AuctionEnd: item.AuctionEnd, ItemID: item.ID}
}

func (c SweepCursor) IsZero() bool {
	return c.AuctionEnd.IsZero() && c.ItemID == uuid.Nil
}

// Precedes reports whether item sorts after the cursor
func (c SweepCursor) Precedes(item *Item) bool {
	if !item.AuctionEnd.Equal(c.AuctionEnd) {
		return item.AuctionEnd.After(c.AuctionEnd)
	}
	return bytes.Compare(item.ID[:], c.ItemID[:]) > 0
}
