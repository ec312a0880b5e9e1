package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "ACTIVE"
	ReservationStatusReturned ReservationStatus = "RETURNED"
)

// ParseReservationStatus accepts the stored status names only. Overdue is not
// a status; see Reservation.IsOverdue.
func ParseReservationStatus(s string) (ReservationStatus, error) {
	switch st := ReservationStatus(s); st {
	case ReservationStatusActive, ReservationStatusReturned:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown reservation status %q", ErrInvalidArgument, s)
}

type Reservation struct {
	ID                 int64
	UserID             int64
	BookID             int64
	RentalDays         int
	StartDate          time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time
	DailyRate          decimal.Decimal
	TotalFee           decimal.Decimal
	LateFee            decimal.Decimal
	Status             ReservationStatus
	Version            int64 // optimistic locking
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsOverdue reports whether an active reservation's expected return date is
// strictly before today.
func (r Reservation) IsOverdue(today time.Time) bool {
	return r.Status == ReservationStatusActive && r.ExpectedReturnDate.Before(DateOf(today))
}

// DateOf truncates t to its calendar date at midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the whole calendar days from a to b, negative when b is
// before a.
func DaysBetween(a, b time.Time) int {
	return int(DateOf(b).Sub(DateOf(a)).Hours() / 24)
}
