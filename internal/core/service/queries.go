package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

func (s *ReservationService) GetReservation(ctx context.Context, id int64) (ReservationView, error) {
	r, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return ReservationView{}, fmt.Errorf("get reservation: %w", err)
	}
	return toView(r, s.userOrEmpty(ctx, r.UserID), s.bookOrEmpty(ctx, r.BookID)), nil
}

func (s *ReservationService) ListReservations(ctx context.Context) ([]ReservationView, error) {
	list, err := s.reservations.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return s.toViews(ctx, list), nil
}

func (s *ReservationService) ListReservationsByUser(ctx context.Context, userID int64) ([]ReservationView, error) {
	list, err := s.reservations.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reservations of user %d: %w", userID, err)
	}
	return s.toViews(ctx, list), nil
}

func (s *ReservationService) ListReservationsByStatus(ctx context.Context, status domain.ReservationStatus) ([]ReservationView, error) {
	if _, err := domain.ParseReservationStatus(string(status)); err != nil {
		return nil, err
	}
	list, err := s.reservations.FindByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("list %s reservations: %w", status, err)
	}
	return s.toViews(ctx, list), nil
}

func (s *ReservationService) ListActiveReservations(ctx context.Context) ([]ReservationView, error) {
	return s.ListReservationsByStatus(ctx, domain.ReservationStatusActive)
}

// ListOverdueReservations returns active reservations whose expected return
// date is before today.
func (s *ReservationService) ListOverdueReservations(ctx context.Context) ([]ReservationView, error) {
	today := domain.DateOf(s.now())
	list, err := s.reservations.FindOverdue(ctx, domain.ReservationStatusActive, today)
	if err != nil {
		return nil, fmt.Errorf("list overdue reservations: %w", err)
	}
	return s.toViews(ctx, list), nil
}

func (s *ReservationService) toViews(ctx context.Context, list []domain.Reservation) []ReservationView {
	users := make(map[int64]domain.User)
	books := make(map[int64]domain.Book)

	views := make([]ReservationView, 0, len(list))
	for _, r := range list {
		u, ok := users[r.UserID]
		if !ok {
			u = s.userOrEmpty(ctx, r.UserID)
			users[r.UserID] = u
		}
		b, ok := books[r.BookID]
		if !ok {
			b = s.bookOrEmpty(ctx, r.BookID)
			books[r.BookID] = b
		}
		views = append(views, toView(r, u, b))
	}
	return views
}

// userOrEmpty and bookOrEmpty keep read queries working when a referenced
// entity is gone from its collaborator; the view then shows blank names.
func (s *ReservationService) userOrEmpty(ctx context.Context, id int64) domain.User {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "user lookup failed", "user_id", id, "error", err)
		}
		return domain.User{ID: id}
	}
	return u
}

func (s *ReservationService) bookOrEmpty(ctx context.Context, id int64) domain.Book {
	b, err := s.books.FindBook(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "book lookup failed", "book_id", id, "error", err)
		}
		return domain.Book{ID: id}
	}
	return b
}

func toView(r domain.Reservation, u domain.User, b domain.Book) ReservationView {
	return ReservationView{
		ID:                 r.ID,
		UserID:             r.UserID,
		UserName:           u.Name,
		BookID:             r.BookID,
		BookTitle:          b.Title,
		RentalDays:         r.RentalDays,
		StartDate:          r.StartDate,
		ExpectedReturnDate: r.ExpectedReturnDate,
		ActualReturnDate:   r.ActualReturnDate,
		DailyRate:          r.DailyRate,
		TotalFee:           r.TotalFee,
		LateFee:            r.LateFee,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
	}
}
