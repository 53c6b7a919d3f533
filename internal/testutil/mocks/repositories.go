package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
)

// ItemRepository mock
type ItemRepository struct {
	mock.Mock
}

func (m *ItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Item), args.Error(1)
}

func (m *ItemRepository) ListExpiredOpen(ctx context.Context, now time.Time, after auction.SweepCursor, limit int) ([]*auction.Item, error) {
	args := m.Called(ctx, now, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.Item), args.Error(1)
}

func (m *ItemRepository) ClaimWinner(ctx context.Context, itemID, bidID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, itemID, bidID, at)
	return args.Bool(0), args.Error(1)
}

func (m *ItemRepository) MarkUnsold(ctx context.Context, itemID uuid.UUID, at time.Time) (bool, error) {
	args := m.Called(ctx, itemID, at)
	return args.Bool(0), args.Error(1)
}

func (m *ItemRepository) RecordPayment(ctx context.Context, p *auction.Payment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

// BidRepository mock
type BidRepository struct {
	mock.Mock
}

func (m *BidRepository) CreateIfHigher(ctx context.Context, b *auction.Bid) (*auction.Bid, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *BidRepository) HighestForItem(ctx context.Context, itemID uuid.UUID) (*auction.Bid, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *BidRepository) ListForItem(ctx context.Context, itemID uuid.UUID) ([]*auction.Bid, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*auction.Bid), args.Error(1)
}

// AuthenticationLookup mock
type AuthenticationLookup struct {
	mock.Mock
}

func (m *AuthenticationLookup) IsAuthenticated(ctx context.Context, itemID uuid.UUID) (bool, error) {
	args := m.Called(ctx, itemID)
	return args.Bool(0), args.Error(1)
}

// UserRepository mock
type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.User), args.Error(1)
}

func (m *UserRepository) ListByRole(ctx context.Context, role account.Role) ([]*account.User, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.User), args.Error(1)
}

// AssignmentRepository mock
type AssignmentRepository struct {
	mock.Mock
}

func (m *AssignmentRepository) Create(ctx context.Context, a *authentication.Assignment, opening *authentication.Message) error {
	args := m.Called(ctx, a, opening)
	return args.Error(0)
}

func (m *AssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*authentication.Assignment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*authentication.Assignment), args.Error(1)
}

func (m *AssignmentRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*authentication.Assignment, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*authentication.Assignment), args.Error(1)
}

func (m *AssignmentRepository) CountByExpert(ctx context.Context, statuses []authentication.AssignmentStatus) (map[uuid.UUID]int, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]int), args.Error(1)
}

func (m *AssignmentRepository) Complete(ctx context.Context, assignmentID, requestID uuid.UUID, outcome authentication.RequestStatus, at time.Time) error {
	args := m.Called(ctx, assignmentID, requestID, outcome, at)
	return args.Error(0)
}

func (m *AssignmentRepository) MarkReassigned(ctx context.Context, assignmentID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, assignmentID, at)
	return args.Error(0)
}
