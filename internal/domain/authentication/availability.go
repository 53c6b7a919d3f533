package authentication

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentCutoff is the final stretch of an auction an expert's slot must
// stay clear of for the expert to be assignable.
const AssignmentCutoff = 3 * time.Hour

// Availability is a window on one calendar day. Start and End are offsets
// from midnight UTC. Windows may overlap.
type Availability struct {
	ID        uuid.UUID     `json:"id"`
	ExpertID  uuid.UUID     `json:"expert_id"`
	Day       time.Time     `json:"day"`
	Start     time.Duration `json:"start"`
	End       time.Duration `json:"end"`
	Available bool          `json:"available"`
}

func (a Availability) StartsAt() time.Time { return a.Day.Add(a.Start) }
func (a Availability) EndsAt() time.Time   { return a.Day.Add(a.End) }

// Covers reports whether t falls inside [start, end) of this window.
func (a Availability) Covers(t time.Time) bool {
	return !t.Before(a.StartsAt()) && t.Before(a.EndsAt())
}

// HasSlotBeforeCutoff reports whether any available window lies on a day
// from today up to the auction's end date and ends no later than auctionEnd
// minus AssignmentCutoff.
func HasSlotBeforeCutoff(slots []Availability, now, auctionEnd time.Time) bool {
	today := truncateDay(now)
	endDate := truncateDay(auctionEnd)
	cutoff := auctionEnd.Add(-AssignmentCutoff)

	for _, s := range slots {
		if !s.Available {
			continue
		}
		day := truncateDay(s.Day)
		if day.Before(today) || day.After(endDate) {
			continue
		}
		if !s.EndsAt().After(cutoff) {
			return true
		}
	}
	return false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
