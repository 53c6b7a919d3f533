package authentication

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Assignment pairs an expert with a request. History is kept: a request
// may collect several Reassigned or Cancelled assignments but at most one
// active one.
type Assignment struct {
	ID         uuid.UUID        `json:"id"`
	RequestID  uuid.UUID        `json:"request_id"`
	ExpertID   uuid.UUID        `json:"expert_id"`
	AssignedAt time.Time        `json:"assigned_at"`
	Status     AssignmentStatus `json:"status"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

type AssignmentStatus int

const (
	AssignmentNotified AssignmentStatus = iota
	AssignmentCompleted
	AssignmentReassigned
	AssignmentCancelled
)

func (s AssignmentStatus) String() string {
	switch s {
	case AssignmentNotified:
		return "notified"
	case AssignmentCompleted:
		return "completed"
	case AssignmentReassigned:
		return "reassigned"
	case AssignmentCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseAssignmentStatus(s string) (AssignmentStatus, error) {
	switch s {
	case "notified":
		return AssignmentNotified, nil
	case "completed":
		return AssignmentCompleted, nil
	case "reassigned":
		return AssignmentReassigned, nil
	case "cancelled":
		return AssignmentCancelled, nil
	default:
		return 0, fmt.Errorf("unknown assignment status %q", s)
	}
}

func (s AssignmentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AssignmentStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseAssignmentStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// IsActive is true for the statuses that block another assignment.
func (s AssignmentStatus) IsActive() bool {
	return s == AssignmentNotified || s == AssignmentCompleted
}

// ActiveStatuses are the statuses covered by the one-active-assignment rule.
var ActiveStatuses = []AssignmentStatus{AssignmentNotified, AssignmentCompleted}

func NewAssignment(requestID, expertID uuid.UUID, now time.Time) *Assignment {
	return &Assignment{
		ID:         uuid.New(),
		RequestID:  requestID,
		ExpertID:   expertID,
		AssignedAt: now,
		Status:     AssignmentNotified,
		UpdatedAt:  now,
	}
}

// Outcomes of conditional writes reported by stores.
var (
	// ErrActiveAssignmentExists means another active assignment for the
	// request was written first.
	ErrActiveAssignmentExists = errors.New("authentication: request already has an active assignment")
	// ErrStaleState means the row was no longer in the expected status.
	ErrStaleState = errors.New("authentication: state changed concurrently")
)
