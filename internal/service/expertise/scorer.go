package expertise

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
)

// DefaultMaxWorkload is the number of assignments at which the workload
// component reaches zero.
const DefaultMaxWorkload = 5

// Scores are decimals so that equal inputs tie exactly.
var (
	weightAvailability = decimal.RequireFromString("0.4")
	weightWorkload     = decimal.RequireFromString("0.3")
	weightExpertise    = decimal.RequireFromString("0.3")

	availableNow       = decimal.NewFromInt(1)
	availableLaterDay  = decimal.RequireFromString("0.7")
	availableLaterDate = decimal.RequireFromString("0.5")
)

// WorkloadPolicy decides which assignment statuses count towards an
// expert's workload.
type WorkloadPolicy int

const (
	// WorkloadActive counts Notified and Completed assignments.
	WorkloadActive WorkloadPolicy = iota
	// WorkloadNotifiedOnly counts only assignments still awaiting a verdict.
	WorkloadNotifiedOnly
)

func (p WorkloadPolicy) String() string {
	if p == WorkloadNotifiedOnly {
		return "notified_only"
	}
	return "active"
}

func ParseWorkloadPolicy(s string) (WorkloadPolicy, error) {
	switch s {
	case "active":
		return WorkloadActive, nil
	case "notified_only", "notified":
		return WorkloadNotifiedOnly, nil
	default:
		return 0, fmt.Errorf("unknown workload policy %q", s)
	}
}

// Statuses returns the assignment statuses counted under p.
func (p WorkloadPolicy) Statuses() []authentication.AssignmentStatus {
	if p == WorkloadNotifiedOnly {
		return []authentication.AssignmentStatus{authentication.AssignmentNotified}
	}
	return authentication.ActiveStatuses
}

// Candidate is an eligible expert with everything needed to score them.
type Candidate struct {
	Expert       *account.User
	Availability []authentication.Availability
	Workload     int
	Categories   []uuid.UUID
}

// Score is a candidate's suitability with its components.
type Score struct {
	ExpertID     uuid.UUID       `json:"expert_id"`
	Username     string          `json:"username"`
	Availability decimal.Decimal `json:"availability"`
	Workload     decimal.Decimal `json:"workload"`
	Expertise    decimal.Decimal `json:"expertise"`
	Total        decimal.Decimal `json:"total"`
}

// Scorer computes expert suitability for an item.
type Scorer struct {
	maxWorkload int
}

func NewScorer(maxWorkload int) *Scorer {
	if maxWorkload <= 0 {
		maxWorkload = DefaultMaxWorkload
	}
	return &Scorer{maxWorkload: maxWorkload}
}

// Score rates c for authenticating item at now:
// 0.4 availability + 0.3 workload + 0.3 expertise, each in [0, 1].
func (s *Scorer) Score(c Candidate, item *auction.Item, now time.Time) Score {
	availability := availabilityScore(c.Availability, now, item.AuctionEnd)
	workload := s.workloadScore(c.Workload)
	expertise := decimal.Zero
	if slices.Contains(c.Categories, item.CategoryID) {
		expertise = decimal.NewFromInt(1)
	}

	total := weightAvailability.Mul(availability).
		Add(weightWorkload.Mul(workload)).
		Add(weightExpertise.Mul(expertise))

	return Score{
		ExpertID:     c.Expert.ID,
		Username:     c.Expert.Username,
		Availability: availability,
		Workload:     workload,
		Expertise:    expertise,
		Total:        total,
	}
}

func (s *Scorer) workloadScore(active int) decimal.Decimal {
	if active >= s.maxWorkload {
		return decimal.Zero
	}
	if active <= 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(1).Sub(decimal.NewFromInt(int64(active)).Div(decimal.NewFromInt(int64(s.maxWorkload))))
}

// availabilityScore takes the most permissive available window on a day in
// [today, auction end date].
func availabilityScore(slots []authentication.Availability, now, auctionEnd time.Time) decimal.Decimal {
	today := auction.TruncateDay(now)
	endDate := auction.TruncateDay(auctionEnd)

	best := decimal.Zero
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		day := auction.TruncateDay(slot.Day)
		if day.Before(today) || day.After(endDate) {
			continue
		}

		var v decimal.Decimal
		switch {
		case day.Equal(today) && slot.Covers(now):
			v = availableNow
		case day.Equal(today) && slot.StartsAt().After(now):
			v = availableLaterDay
		case day.After(today):
			v = availableLaterDate
		default:
			continue
		}
		if v.GreaterThan(best) {
			best = v
		}
	}
	return best
}

// SelectBest picks the maximum score. Ties are broken in favour of
// preferred when it is among them, otherwise uniformly at random.
func SelectBest(scores []Score, preferred *uuid.UUID, rng Rand) (Score, bool) {
	if len(scores) == 0 {
		return Score{}, false
	}

	top := scores[0].Total
	for _, sc := range scores[1:] {
		if sc.Total.GreaterThan(top) {
			top = sc.Total
		}
	}

	var tied []Score
	for _, sc := range scores {
		if sc.Total.Equal(top) {
			tied = append(tied, sc)
		}
	}

	if preferred != nil {
		for _, sc := range tied {
			if sc.ExpertID == *preferred {
				return sc, true
			}
		}
	}
	if len(tied) == 1 {
		return tied[0], true
	}
	return tied[rng.IntN(len(tied))], true
}

// Eligible reports whether expert may be considered for req given the
// experts already assigned to it at any point.
func Eligible(expert *account.User, req *authentication.Request, alreadyAssigned map[uuid.UUID]bool) bool {
	return expert.IsExpert() && expert.ID != req.RequesterID && !alreadyAssigned[expert.ID]
}

// Rank sorts scores best first, by username for equal totals.
func Rank(scores []Score) {
	slices.SortStableFunc(scores, func(a, b Score) int {
		if c := b.Total.Cmp(a.Total); c != 0 {
			return c
		}
		if a.Username < b.Username {
			return -1
		}
		if a.Username > b.Username {
			return 1
		}
		return 0
	})
}
