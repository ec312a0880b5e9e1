package port

import (
	"context"
	"time"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

type UserRepository interface {
	// GetUser returns domain.ErrNotFound when the user does not exist
	GetUser(ctx context.Context, id int64) (domain.User, error)
}

type BookRepository interface {
	// FindBook returns domain.ErrNotFound when the book does not exist
	FindBook(ctx context.Context, id int64) (domain.Book, error)

	// SaveBook upserts catalog data. Availability changes go through InventoryLedger.
	SaveBook(ctx context.Context, book domain.Book) (domain.Book, error)
}

type ReservationRepository interface {
	// Save inserts when ID is zero and assigns the ID, otherwise updates with version check
	Save(ctx context.Context, reservation domain.Reservation) (domain.Reservation, error)

	FindByID(ctx context.Context, id int64) (domain.Reservation, error)
	FindAll(ctx context.Context) ([]domain.Reservation, error)
	FindByUser(ctx context.Context, userID int64) ([]domain.Reservation, error)
	FindByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error)

	// FindOverdue returns reservations in status whose expected return date is before today
	FindOverdue(ctx context.Context, status domain.ReservationStatus, today time.Time) ([]domain.Reservation, error)
}
