package authentication

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Request asks for an expert to authenticate an item. An item has at most
// one request.
type Request struct {
	ID          uuid.UUID     `json:"id"`
	ItemID      uuid.UUID     `json:"item_id"`
	RequesterID uuid.UUID     `json:"requester_id"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type RequestStatus int

const (
	RequestPending RequestStatus = iota
	RequestApproved
	RequestDeclined
	RequestCancelled
)

func (s RequestStatus) String() string {
	switch s {
	case RequestPending:
		return "pending"
	case RequestApproved:
		return "approved"
	case RequestDeclined:
		return "declined"
	case RequestCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	switch s {
	case "pending":
		return RequestPending, nil
	case "approved":
		return RequestApproved, nil
	case "declined":
		return RequestDeclined, nil
	case "cancelled":
		return RequestCancelled, nil
	default:
		return 0, fmt.Errorf("unknown request status %q", s)
	}
}

func (s RequestStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RequestStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseRequestStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (r *Request) IsPending() bool { return r.Status == RequestPending }

// Decision is an expert's verdict on an item.
type Decision int

const (
	DecisionApprove Decision = iota
	DecisionDecline
)

func (d Decision) String() string {
	if d == DecisionApprove {
		return "approve"
	}
	return "decline"
}

func ParseDecision(s string) (Decision, error) {
	switch s {
	case "approve", "accept":
		return DecisionApprove, nil
	case "decline":
		return DecisionDecline, nil
	default:
		return 0, fmt.Errorf("unknown decision %q", s)
	}
}

// RequestStatus is the terminal request status the decision leads to.
func (d Decision) RequestStatus() RequestStatus {
	if d == DecisionApprove {
		return RequestApproved
	}
	return RequestDeclined
}
