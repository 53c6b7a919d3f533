package auction

import "errors"

// Store-level outcomes of conditional writes. Services translate these into
// conflict errors.
var (
	// ErrBidNotHigher means another bid of equal or greater amount was
	// accepted first.
	ErrBidNotHigher = errors.New("auction: bid does not exceed current highest")
	// ErrAuctionClosed means the item left the Open state or its window
	// ended before the bid was written.
	ErrAuctionClosed = errors.New("auction: item is not open for bidding")
	// ErrNotWon means the item was not in the Won state when payment was
	// recorded.
	ErrNotWon = errors.New("auction: item is not won")
)
