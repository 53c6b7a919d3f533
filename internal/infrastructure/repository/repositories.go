package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all repository instances
type Repositories struct {
	Users         *UserRepository
	Items         *ItemRepository
	Bids          *BidRepository
	Requests      *RequestRepository
	Assignments   *AssignmentRepository
	Profiles      *ProfileRepository
	Notifications *NotificationRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:         NewUserRepository(pool),
		Items:         NewItemRepository(pool),
		Bids:          NewBidRepository(pool),
		Requests:      NewRequestRepository(pool),
		Assignments:   NewAssignmentRepository(pool),
		Profiles:      NewProfileRepository(pool),
		Notifications: NewNotificationRepository(pool),
	}
}
