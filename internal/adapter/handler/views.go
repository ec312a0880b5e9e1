package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/grpc/codes"

	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
)

// ReservationResponse is the wire shape of a reservation for both HTTP and gRPC.
type ReservationResponse struct {
	ID                 int64   `json:"id"`
	UserID             int64   `json:"user_id"`
	UserName           string  `json:"user_name"`
	BookID             int64   `json:"book_id"`
	BookTitle          string  `json:"book_title"`
	RentalDays         int     `json:"rental_days"`
	StartDate          string  `json:"start_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date,omitempty"`
	DailyRate          string  `json:"daily_rate"`
	TotalFee           string  `json:"total_fee"`
	LateFee            string  `json:"late_fee"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
}

func newReservationResponse(v service.ReservationView) *ReservationResponse {
	resp := &ReservationResponse{
		ID:                 v.ID,
		UserID:             v.UserID,
		UserName:           v.UserName,
		BookID:             v.BookID,
		BookTitle:          v.BookTitle,
		RentalDays:         v.RentalDays,
		StartDate:          v.StartDate.Format(time.DateOnly),
		ExpectedReturnDate: v.ExpectedReturnDate.Format(time.DateOnly),
		DailyRate:          v.DailyRate.StringFixed(2),
		TotalFee:           v.TotalFee.StringFixed(2),
		LateFee:            v.LateFee.StringFixed(2),
		Status:             string(v.Status),
		CreatedAt:          v.CreatedAt.UTC().Format(time.RFC3339),
	}
	if v.ActualReturnDate != nil {
		d := v.ActualReturnDate.Format(time.DateOnly)
		resp.ActualReturnDate = &d
	}
	return resp
}

func newReservationResponses(views []service.ReservationView) []*ReservationResponse {
	out := make([]*ReservationResponse, 0, len(views))
	for _, v := range views {
		out = append(out, newReservationResponse(v))
	}
	return out
}

// parseDate accepts YYYY-MM-DD; empty means "let the service default it".
func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", domain.ErrInvalidArgument, field)
	}
	return t, nil
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnavailable),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, domain.ErrInvalidArgument):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, domain.ErrInvalidState):
		return codes.FailedPrecondition
	case errors.Is(err, service.ErrDuplicateRequest):
		return codes.AlreadyExists
	default:
		return codes.Internal
	}
}
