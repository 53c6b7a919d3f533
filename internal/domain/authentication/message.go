package authentication

import (
	"time"

	"github.com/google/uuid"
)

// OpeningMessageText is what a newly assigned expert says first.
const OpeningMessageText = "Hi, I have been assigned to authenticate this item. " +
	"To expedite the process, please provide any relevant information or documentation."

// Message is one entry in the conversation between requester and expert.
type Message struct {
	ID        uuid.UUID `json:"id"`
	RequestID uuid.UUID `json:"request_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Text      string    `json:"text"`
	SentAt    time.Time `json:"sent_at"`
}

func NewOpeningMessage(requestID, expertID uuid.UUID, now time.Time) *Message {
	return &Message{
		ID:        uuid.New(),
		RequestID: requestID,
		SenderID:  expertID,
		Text:      OpeningMessageText,
		SentAt:    now,
	}
}
