package notification

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeOutbid           Type = "outbid"
	TypeWinner           Type = "winner"
	TypeLoser            Type = "loser"
	TypeSellerSold       Type = "seller_sold"
	TypeSellerUnsold     Type = "seller_unsold"
	TypePaymentSeller    Type = "payment_seller"
	TypePaymentBuyer     Type = "payment_buyer"
	TypeAssignmentNotice Type = "assignment_notice"
	TypeAuthDecision     Type = "auth_decision"
)

// PushEventName is the real-time channel event every notification is sent as.
const PushEventName = "new_notification"

// Event is something a user should hear about. Engines produce events and
// hand them to the dispatcher; they never deliver anything themselves.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      Type       `json:"type"`
	UserID    uuid.UUID  `json:"user_id"`
	Message   string     `json:"message"`
	ItemID    *uuid.UUID `json:"item_id,omitempty"`
	ItemTitle string     `json:"item_title,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

func newEvent(t Type, userID uuid.UUID, itemID uuid.UUID, title, message string, now time.Time) Event {
	id := itemID
	return Event{
		ID:        uuid.New(),
		Type:      t,
		UserID:    userID,
		Message:   message,
		ItemID:    &id,
		ItemTitle: title,
		Timestamp: now,
	}
}

func Outbid(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeOutbid, userID, itemID, title,
		fmt.Sprintf("You have been outbid on %s", title), now)
}

func Winner(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeWinner, userID, itemID, title,
		fmt.Sprintf("Congratulations! You won the auction for %s", title), now)
}

func Loser(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeLoser, userID, itemID, title,
		fmt.Sprintf("The auction for %s has ended and another bidder won", title), now)
}

func SellerSold(userID, itemID uuid.UUID, title, amount string, now time.Time) Event {
	return newEvent(TypeSellerSold, userID, itemID, title,
		fmt.Sprintf("Your item %s sold for %s", title, amount), now)
}

func SellerUnsold(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeSellerUnsold, userID, itemID, title,
		fmt.Sprintf("The auction for %s ended without any bids", title), now)
}

func PaymentSeller(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypePaymentSeller, userID, itemID, title,
		fmt.Sprintf("Payment has been received for %s", title), now)
}

func PaymentBuyer(userID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypePaymentBuyer, userID, itemID, title,
		fmt.Sprintf("Your payment for %s has been confirmed", title), now)
}

// ExpertAssigned tells an expert they have a new item to authenticate.
func ExpertAssigned(expertID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeAssignmentNotice, expertID, itemID, title,
		"You have been assigned to authenticate an item", now)
}

// RequesterAssigned tells the requester an expert has picked up their item.
func RequesterAssigned(requesterID, itemID uuid.UUID, title string, now time.Time) Event {
	return newEvent(TypeAssignmentNotice, requesterID, itemID, title,
		"An expert has been assigned to authenticate your item", now)
}

func AuthDecision(requesterID, itemID uuid.UUID, title string, approved bool, now time.Time) Event {
	verdict := "declined"
	if approved {
		verdict = "approved"
	}
	return newEvent(TypeAuthDecision, requesterID, itemID, title,
		fmt.Sprintf("An expert has %s the authenticity of %s", verdict, title), now)
}

// Notification is the persisted, user-visible form of an event.
type Notification struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Message   string     `json:"message"`
	ItemID    *uuid.UUID `json:"item_id,omitempty"`
	ItemTitle string     `json:"item_title,omitempty"`
	Type      Type       `json:"type"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

// FromEvent builds the stored notification for e, reusing the event id so
// redelivery of the same event is idempotent at the store.
func FromEvent(e Event) *Notification {
	return &Notification{
		ID:        e.ID,
		UserID:    e.UserID,
		Message:   e.Message,
		ItemID:    e.ItemID,
		ItemTitle: e.ItemTitle,
		Type:      e.Type,
		CreatedAt: e.Timestamp,
	}
}

// Subject is the email subject line for a notification.
func (n *Notification) Subject() string {
	switch n.Type {
	case TypeOutbid:
		return fmt.Sprintf("You've been outbid on %s", n.ItemTitle)
	case TypeWinner:
		return fmt.Sprintf("Congratulations! You won the auction for %s", n.ItemTitle)
	case TypeLoser, TypeSellerSold, TypeSellerUnsold:
		return fmt.Sprintf("Auction for %s has ended", n.ItemTitle)
	case TypePaymentSeller, TypePaymentBuyer:
		return fmt.Sprintf("Payment update for %s", n.ItemTitle)
	case TypeAssignmentNotice, TypeAuthDecision:
		return fmt.Sprintf("Update on authentication request for %s", n.ItemTitle)
	default:
		return "Auction Notification"
	}
}

// Body is the plain-text email body. baseURL may be empty.
func (n *Notification) Body(baseURL string) string {
	body := n.Message + "\n\n"
	if n.ItemID != nil && baseURL != "" {
		body += fmt.Sprintf("View item: %s/item/%s\n\n", baseURL, n.ItemID)
	}
	return body + "Thank you for using Vintage Vault!"
}
