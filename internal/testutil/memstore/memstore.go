// Package memstore is an in-memory implementation of every repository the
// services depend on. Conditional writes hold one lock for the whole
// check-and-set, matching the guarantees the PostgreSQL repositories give
// with row locks and conditional statements.
package memstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/errors"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

type Store struct {
	mu sync.Mutex

	users         map[uuid.UUID]account.User
	items         map[uuid.UUID]auction.Item
	bids          map[uuid.UUID][]auction.Bid
	payments      map[uuid.UUID]auction.Payment
	requests      map[uuid.UUID]authentication.Request
	assignments   []authentication.Assignment
	messages      []authentication.Message
	availability  map[uuid.UUID][]authentication.Availability
	categories    map[uuid.UUID][]uuid.UUID
	notifications []notification.Notification
}

func New() *Store {
	return &Store{
		users:        make(map[uuid.UUID]account.User),
		items:        make(map[uuid.UUID]auction.Item),
		bids:         make(map[uuid.UUID][]auction.Bid),
		payments:     make(map[uuid.UUID]auction.Payment),
		requests:     make(map[uuid.UUID]authentication.Request),
		availability: make(map[uuid.UUID][]authentication.Availability),
		categories:   make(map[uuid.UUID][]uuid.UUID),
	}
}

// Seeding helpers

func (s *Store) AddUser(u *account.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = *u
}

func (s *Store) AddItem(i *auction.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[i.ID] = *i
}

func (s *Store) AddRequest(r *authentication.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.ID] = *r
}

func (s *Store) AddAssignment(a *authentication.Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, *a)
}

func (s *Store) AddAvailability(a authentication.Availability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.availability[a.ExpertID] = append(s.availability[a.ExpertID], a)
}

func (s *Store) AddCategory(expertID, categoryID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(s.categories[expertID], categoryID) {
		s.categories[expertID] = append(s.categories[expertID], categoryID)
	}
}

// Inspection helpers

func (s *Store) Item(id uuid.UUID) (auction.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.items[id]
	return i, ok
}

func (s *Store) Request(id uuid.UUID) (authentication.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	return r, ok
}

func (s *Store) Payment(itemID uuid.UUID) (auction.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[itemID]
	return p, ok
}

func (s *Store) AssignmentsFor(requestID uuid.UUID) []authentication.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []authentication.Assignment
	for _, a := range s.assignments {
		if a.RequestID == requestID {
			out = append(out, a)
		}
	}
	return out
}

func (s *Store) Messages(requestID uuid.UUID) []authentication.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []authentication.Message
	for _, m := range s.messages {
		if m.RequestID == requestID {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) NotificationsFor(userID uuid.UUID) []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// Repository views

func (s *Store) Users() *Users                 { return &Users{s} }
func (s *Store) Items() *Items                 { return &Items{s} }
func (s *Store) Bids() *Bids                   { return &Bids{s} }
func (s *Store) Requests() *Requests           { return &Requests{s} }
func (s *Store) Assignments() *Assignments     { return &Assignments{s} }
func (s *Store) Profiles() *Profiles           { return &Profiles{s} }
func (s *Store) Notifications() *Notifications { return &Notifications{s} }

type Users struct{ s *Store }

func (v *Users) GetByID(_ context.Context, id uuid.UUID) (*account.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[id]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return &u, nil
}

func (v *Users) ListByRole(_ context.Context, role account.Role) ([]*account.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*account.User
	for _, u := range v.s.users {
		if u.Role == role {
			u := u
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

type Items struct{ s *Store }

func (v *Items) GetByID(_ context.Context, id uuid.UUID) (*auction.Item, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	i, ok := v.s.items[id]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return &i, nil
}

func (v *Items) ListExpiredOpen(_ context.Context, now time.Time, after auction.SweepCursor, limit int) ([]*auction.Item, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*auction.Item
	for _, i := range v.s.items {
		if i.ReadyToFinalize(now) && after.Precedes(&i) {
			i := i
			out = append(out, &i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return auction.CursorAfter(out[a]).Precedes(out[b]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v *Items) ClaimWinner(_ context.Context, itemID, bidID uuid.UUID, at time.Time) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	i, ok := v.s.items[itemID]
	if !ok || i.Status != auction.StatusOpen || i.WinningBidID != nil {
		return false, nil
	}
	bids := v.s.bids[itemID]
	if len(bids) == 0 || bids[len(bids)-1].ID != bidID {
		return false, nil
	}
	id := bidID
	i.WinningBidID = &id
	i.Status = auction.StatusWon
	i.UpdatedAt = at
	v.s.items[itemID] = i
	return true, nil
}

func (v *Items) MarkUnsold(_ context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	i, ok := v.s.items[itemID]
	if !ok || i.Status != auction.StatusOpen || i.WinningBidID != nil || len(v.s.bids[itemID]) > 0 {
		return false, nil
	}
	i.Status = auction.StatusUnsold
	i.UpdatedAt = at
	v.s.items[itemID] = i
	return true, nil
}

func (v *Items) RecordPayment(_ context.Context, p *auction.Payment) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	i, ok := v.s.items[p.ItemID]
	if !ok || i.Status != auction.StatusWon {
		return auction.ErrNotWon
	}
	i.Status = auction.StatusPaid
	i.UpdatedAt = p.PaidAt
	v.s.items[p.ItemID] = i
	v.s.payments[p.ItemID] = *p
	return nil
}

type Bids struct{ s *Store }

func (v *Bids) CreateIfHigher(_ context.Context, b *auction.Bid) (*auction.Bid, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	i, ok := v.s.items[b.ItemID]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	if i.Status != auction.StatusOpen || i.HasEnded(b.PlacedAt) {
		return nil, auction.ErrAuctionClosed
	}

	bids := v.s.bids[b.ItemID]
	var previous *auction.Bid
	if len(bids) > 0 {
		top := bids[len(bids)-1]
		if !b.Amount.Amount().GreaterThan(top.Amount.Amount()) {
			return nil, auction.ErrBidNotHigher
		}
		previous = &top
	}
	v.s.bids[b.ItemID] = append(bids, *b)
	return previous, nil
}

func (v *Bids) GetByID(_ context.Context, id uuid.UUID) (*auction.Bid, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, bids := range v.s.bids {
		for _, b := range bids {
			if b.ID == id {
				return &b, nil
			}
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (v *Bids) HighestForItem(_ context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	bids := v.s.bids[itemID]
	if len(bids) == 0 {
		return nil, nil
	}
	top := bids[len(bids)-1]
	return &top, nil
}

func (v *Bids) ListForItem(_ context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	bids := v.s.bids[itemID]
	out := make([]*auction.Bid, len(bids))
	for i := range bids {
		b := bids[i]
		out[i] = &b
	}
	return out, nil
}

type Requests struct{ s *Store }

func (v *Requests) GetByID(_ context.Context, id uuid.UUID) (*authentication.Request, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.requests[id]
	if !ok {
		return nil, errors.ErrRecordNotFound
	}
	return &r, nil
}

func (v *Requests) ListPendingEnded(_ context.Context, now time.Time) ([]*authentication.Request, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*authentication.Request
	for _, r := range v.s.requests {
		item, ok := v.s.items[r.ItemID]
		if r.IsPending() && ok && item.HasEnded(now) {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (v *Requests) CancelPending(_ context.Context, requestID uuid.UUID, at time.Time) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	r, ok := v.s.requests[requestID]
	if !ok || !r.IsPending() {
		return false, nil
	}
	r.Status = authentication.RequestCancelled
	r.UpdatedAt = at
	v.s.requests[requestID] = r
	for i := range v.s.assignments {
		a := &v.s.assignments[i]
		if a.RequestID == requestID && a.Status == authentication.AssignmentNotified {
			a.Status = authentication.AssignmentCancelled
			a.UpdatedAt = at
		}
	}
	return true, nil
}

// IsAuthenticated reports whether the item's request was approved.
func (v *Requests) IsAuthenticated(_ context.Context, itemID uuid.UUID) (bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, r := range v.s.requests {
		if r.ItemID == itemID && r.Status == authentication.RequestApproved {
			return true, nil
		}
	}
	return false, nil
}

type Assignments struct{ s *Store }

func (v *Assignments) Create(_ context.Context, a *authentication.Assignment, opening *authentication.Message) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if r, ok := v.s.requests[a.RequestID]; !ok || !r.IsPending() {
		return authentication.ErrStaleState
	}
	for _, existing := range v.s.assignments {
		if existing.RequestID == a.RequestID && existing.Status.IsActive() {
			return authentication.ErrActiveAssignmentExists
		}
	}
	v.s.assignments = append(v.s.assignments, *a)
	if opening != nil {
		v.s.messages = append(v.s.messages, *opening)
	}
	return nil
}

func (v *Assignments) GetByID(_ context.Context, id uuid.UUID) (*authentication.Assignment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, a := range v.s.assignments {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, errors.ErrRecordNotFound
}

func (v *Assignments) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*authentication.Assignment, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*authentication.Assignment
	for _, a := range v.s.assignments {
		if a.RequestID == requestID {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (v *Assignments) CountByExpert(_ context.Context, statuses []authentication.AssignmentStatus) (map[uuid.UUID]int, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	counts := make(map[uuid.UUID]int)
	for _, a := range v.s.assignments {
		if slices.Contains(statuses, a.Status) {
			counts[a.ExpertID]++
		}
	}
	return counts, nil
}

func (v *Assignments) Complete(_ context.Context, assignmentID, requestID uuid.UUID, outcome authentication.RequestStatus, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	idx := v.s.indexOf(assignmentID)
	r, ok := v.s.requests[requestID]
	if idx < 0 || !ok || v.s.assignments[idx].Status != authentication.AssignmentNotified || !r.IsPending() {
		return authentication.ErrStaleState
	}
	v.s.assignments[idx].Status = authentication.AssignmentCompleted
	v.s.assignments[idx].UpdatedAt = at
	r.Status = outcome
	r.UpdatedAt = at
	v.s.requests[requestID] = r
	return nil
}

func (v *Assignments) MarkReassigned(_ context.Context, assignmentID uuid.UUID, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	idx := v.s.indexOf(assignmentID)
	if idx < 0 || v.s.assignments[idx].Status != authentication.AssignmentNotified {
		return authentication.ErrStaleState
	}
	v.s.assignments[idx].Status = authentication.AssignmentReassigned
	v.s.assignments[idx].UpdatedAt = at
	return nil
}

func (s *Store) indexOf(assignmentID uuid.UUID) int {
	for i := range s.assignments {
		if s.assignments[i].ID == assignmentID {
			return i
		}
	}
	return -1
}

type Profiles struct{ s *Store }

func (v *Profiles) ListAvailability(_ context.Context, expertIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]authentication.Availability, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make(map[uuid.UUID][]authentication.Availability)
	for _, id := range expertIDs {
		for _, a := range v.s.availability[id] {
			day := auction.TruncateDay(a.Day)
			if day.Before(auction.TruncateDay(from)) || day.After(auction.TruncateDay(to)) {
				continue
			}
			out[id] = append(out[id], a)
		}
	}
	return out, nil
}

func (v *Profiles) ListCategories(_ context.Context, expertIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make(map[uuid.UUID][]uuid.UUID)
	for _, id := range expertIDs {
		if cats := v.s.categories[id]; len(cats) > 0 {
			out[id] = slices.Clone(cats)
		}
	}
	return out, nil
}

type Notifications struct{ s *Store }

func (v *Notifications) Save(_ context.Context, n *notification.Notification) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for _, existing := range v.s.notifications {
		if existing.ID == n.ID {
			return nil
		}
	}
	v.s.notifications = append(v.s.notifications, *n)
	return nil
}

func (v *Notifications) ListForUser(_ context.Context, userID uuid.UUID, limit int) ([]*notification.Notification, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	var out []*notification.Notification
	for i := len(v.s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if n := v.s.notifications[i]; n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}
