package port

import (
	"context"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

// InventoryLedger is the only writer of Book.AvailableQuantity. Both
// operations are serialized per book and update the passed book with the
// persisted quantity and version.
type InventoryLedger interface {
	// ReserveOne takes one copy, returns domain.ErrUnavailable when none are left
	ReserveOne(ctx context.Context, book *domain.Book) error

	// ReleaseOne puts one copy back, returns domain.ErrInvalidState if stock is already full
	ReleaseOne(ctx context.Context, book *domain.Book) error
}
