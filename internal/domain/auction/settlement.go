package auction

import "github.com/google/uuid"

// Settlement is the outcome of closing an auction.
type Settlement struct {
	Winner *Bid
	// Losers are the distinct bidders other than the winner, in order of
	// their first bid.
	Losers []uuid.UUID
}

func (s Settlement) Sold() bool { return s.Winner != nil }

// Settle picks the winner from bids given in acceptance order. Since
// accepted amounts only go up, the winner is the last bid.
func Settle(bids []*Bid) Settlement {
	if len(bids) == 0 {
		return Settlement{}
	}
	winner := bids[len(bids)-1]
	for _, b := range bids {
		if c, err := b.Amount.Cmp(winner.Amount); err == nil && c > 0 {
			winner = b
		}
	}

	seen := map[uuid.UUID]struct{}{winner.BidderID: {}}
	var losers []uuid.UUID
	for _, b := range bids {
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		losers = append(losers, b.BidderID)
	}
	return Settlement{Winner: winner, Losers: losers}
}
