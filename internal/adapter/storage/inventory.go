package storage

import (
	"fmt"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

func validateBook(b domain.Book) error {
	switch {
	case b.ID <= 0:
		return fmt.Errorf("%w: book id is required", domain.ErrInvalidArgument)
	case b.Price.IsNegative():
		return fmt.Errorf("%w: book %d has negative price", domain.ErrInvalidArgument, b.ID)
	case b.StockQuantity < 0:
		return fmt.Errorf("%w: book %d has negative stock", domain.ErrInvalidArgument, b.ID)
	case b.AvailableQuantity < 0 || b.AvailableQuantity > b.StockQuantity:
		return fmt.Errorf("%w: book %d available %d outside [0, %d]",
			domain.ErrInvalidArgument, b.ID, b.AvailableQuantity, b.StockQuantity)
	}
	return nil
}

// nextAvailable applies delta to the book's availability, keeping it within
// [0, stock].
func nextAvailable(b domain.Book, delta int) (int, error) {
	next := b.AvailableQuantity + delta
	if next < 0 {
		return 0, domain.ErrUnavailable
	}
	if next > b.StockQuantity {
		return 0, fmt.Errorf("%w: book %d already has all %d copies available",
			domain.ErrInvalidState, b.ID, b.StockQuantity)
	}
	return next, nil
}
