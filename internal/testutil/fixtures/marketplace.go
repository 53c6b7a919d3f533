package fixtures

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/vintage-vault-backend/internal/domain/account"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/auction"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/authentication"
	"github.com/davidleathers/vintage-vault-backend/internal/domain/values"
)

// Now is the reference instant used across service tests: a Tuesday
// mid-morning so "later today" and "tomorrow" are both meaningful.
var Now = time.Date(2026, 6, 9, 10, 0, 0, 0, time.UTC)

func GBP(amount string) values.Money {
	return values.MustNewMoneyFromString(amount, values.GBP)
}

func NewUser(username string, role account.Role) *account.User {
	return &account.User{
		ID:        uuid.New(),
		Username:  username,
		Email:     username + "@vintagevault.test",
		Role:      role,
		CreatedAt: Now.Add(-30 * 24 * time.Hour),
	}
}

// ItemBuilder builds test Item entities
type ItemBuilder struct {
	item auction.Item
}

// NewItemBuilder creates an open item that started a day ago and ends in
// two days.
func NewItemBuilder(sellerID uuid.UUID) *ItemBuilder {
	return &ItemBuilder{item: auction.Item{
		ID:           uuid.New(),
		SellerID:     sellerID,
		CategoryID:   uuid.New(),
		Title:        "Victorian pocket watch",
		MinimumPrice: GBP("100"),
		AuctionStart: Now.Add(-24 * time.Hour),
		AuctionEnd:   Now.Add(48 * time.Hour),
		Status:       auction.StatusOpen,
		CreatedAt:    Now.Add(-24 * time.Hour),
		UpdatedAt:    Now.Add(-24 * time.Hour),
	}}
}

func (b *ItemBuilder) WithTitle(title string) *ItemBuilder {
	b.item.Title = title
	return b
}

func (b *ItemBuilder) WithMinimum(amount string) *ItemBuilder {
	b.item.MinimumPrice = GBP(amount)
	return b
}

func (b *ItemBuilder) WithCategory(id uuid.UUID) *ItemBuilder {
	b.item.CategoryID = id
	return b
}

func (b *ItemBuilder) EndingAt(end time.Time) *ItemBuilder {
	b.item.AuctionEnd = end
	if !b.item.AuctionStart.Before(end) {
		b.item.AuctionStart = end.Add(-72 * time.Hour)
	}
	return b
}

func (b *ItemBuilder) StartingAt(start time.Time) *ItemBuilder {
	b.item.AuctionStart = start
	return b
}

func (b *ItemBuilder) WithStatus(s auction.ItemStatus) *ItemBuilder {
	b.item.Status = s
	return b
}

func (b *ItemBuilder) Build() *auction.Item {
	item := b.item
	return &item
}

// Slot is an available window for expertID on the day of day, between the
// given hours.
func Slot(expertID uuid.UUID, day time.Time, startHour, endHour int) authentication.Availability {
	return authentication.Availability{
		ID:        uuid.New(),
		ExpertID:  expertID,
		Day:       auction.TruncateDay(day),
		Start:     time.Duration(startHour) * time.Hour,
		End:       time.Duration(endHour) * time.Hour,
		Available: true,
	}
}

func NewRequest(itemID, requesterID uuid.UUID) *authentication.Request {
	return &authentication.Request{
		ID:          uuid.New(),
		ItemID:      itemID,
		RequesterID: requesterID,
		Status:      authentication.RequestPending,
		CreatedAt:   Now.Add(-time.Hour),
		UpdatedAt:   Now.Add(-time.Hour),
	}
}
