package expertise

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/notification"
)

// Allocator binds experts to authentication requests
type Allocator interface {
	// Assign binds a specific expert to a pending request
	Assign(ctx context.Context, requestID, expertID, actorID uuid.UUID) (*authentication.Assignment, error)
	// AutoAssign assigns the best-scoring eligible expert
	AutoAssign(ctx context.Context, requestID, actorID uuid.UUID, preferred *uuid.UUID) (*authentication.Assignment, error)
	// BulkAutoAssign auto-assigns several requests, one result per request
	BulkAutoAssign(ctx context.Context, requestIDs []uuid.UUID, actorID uuid.UUID) ([]BulkResult, error)
	// Respond records the assigned expert's verdict
	Respond(ctx context.Context, assignmentID, actorID uuid.UUID, decision authentication.Decision) (*authentication.Assignment, error)
	// Reassign releases a notified assignment so the request can be assigned again
	Reassign(ctx context.Context, assignmentID, actorID uuid.UUID) (*authentication.Assignment, error)
	// RankExperts scores every eligible expert for a request, best first
	RankExperts(ctx context.Context, requestID, actorID uuid.UUID) ([]Score, error)
	// CancelExpired cancels pending requests whose auction has ended
	CancelExpired(ctx context.Context) (int, error)
}

// UserRepository defines user lookups
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*account.User, error)
	ListByRole(ctx context.Context, role account.Role) ([]*account.User, error)
}

// ItemReader loads the item a request is about
type ItemReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*auction.Item, error)
}

// RequestRepository defines authentication request storage
type RequestRepository interface {
	// GetByID retrieves a request by ID
	GetByID(ctx context.Context, id uuid.UUID) (*authentication.Request, error)
	// ListPendingEnded returns pending requests whose item's auction ended at or before now
	ListPendingEnded(ctx context.Context, now time.Time) ([]*authentication.Request, error)
	// CancelPending moves a pending request and its notified assignments to
	// Cancelled in one transaction; false when the request was not pending
	CancelPending(ctx context.Context, requestID uuid.UUID, at time.Time) (bool, error)
}

// AssignmentRepository defines expert assignment storage
type AssignmentRepository interface {
	// Create stores a notified assignment with its opening message unless
	// the request already has an active assignment, in which case it
	// returns authentication.ErrActiveAssignmentExists. A request that is
	// no longer pending yields authentication.ErrStaleState.
	Create(ctx context.Context, a *authentication.Assignment, opening *authentication.Message) error
	// GetByID retrieves an assignment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*authentication.Assignment, error)
	// ListByRequest returns every assignment ever made for a request
	ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*authentication.Assignment, error)
	// CountByExpert counts assignments per expert among the given statuses
	CountByExpert(ctx context.Context, statuses []authentication.AssignmentStatus) (map[uuid.UUID]int, error)
	// Complete moves a notified assignment to Completed and its pending
	// request to outcome atomically; authentication.ErrStaleState otherwise
	Complete(ctx context.Context, assignmentID, requestID uuid.UUID, outcome authentication.RequestStatus, at time.Time) error
	// MarkReassigned moves a notified assignment to Reassigned;
	// authentication.ErrStaleState otherwise
	MarkReassigned(ctx context.Context, assignmentID uuid.UUID, at time.Time) error
}

// ExpertProfileRepository exposes expert availability and expertise
type ExpertProfileRepository interface {
	// ListAvailability returns availability windows on days in [from, to] per expert
	ListAvailability(ctx context.Context, expertIDs []uuid.UUID, from, to time.Time) (map[uuid.UUID][]authentication.Availability, error)
	// ListCategories returns the categories each expert is qualified in
	ListCategories(ctx context.Context, expertIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

// EventPublisher hands events to the notification dispatcher
type EventPublisher interface {
	Publish(ctx context.Context, events ...notification.Event)
}

// MetricsCollector defines the interface for metrics collection
type MetricsCollector interface {
	RecordAssignment(ctx context.Context, mode string)
	RecordAssignmentRejected(ctx context.Context, reason string)
	RecordDecision(ctx context.Context, decision string)
}

// BulkResult is the outcome for one request of a bulk auto-assignment
type BulkResult struct {
	RequestID  uuid.UUID                  `json:"request_id"`
	Assignment *authentication.Assignment `json:"assignment,omitempty"`
	Err        error                      `json:"-"`
}

// Config holds allocator settings
type Config struct {
	// AutoAssignPolicy picks which assignments count as workload when
	// auto-assigning. Ranking for managers always uses WorkloadActive.
	AutoAssignPolicy WorkloadPolicy
	MaxWorkload      int
}

func DefaultConfig() Config {
	return Config{
		AutoAssignPolicy: WorkloadNotifiedOnly,
		MaxWorkload:      DefaultMaxWorkload,
	}
}
