package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/obs"
	"github.com/rl1809/book-reservation/internal/port"
)

const (
	idempotencyKeyPrefix = "reservation:"
	compensationTimeout  = 5 * time.Second
)

var ErrDuplicateRequest = errors.New("duplicate request")

type CreateReservationRequest struct {
	RequestID  string // optional, enables duplicate detection
	UserID     int64
	BookID     int64
	RentalDays int
	StartDate  time.Time // zero means today
}

type ReturnBookRequest struct {
	ReturnDate time.Time // zero means today
}

// ReservationView is what callers get back instead of the stored entity.
type ReservationView struct {
	ID                 int64
	UserID             int64
	UserName           string
	BookID             int64
	BookTitle          string
	RentalDays         int
	StartDate          time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time
	DailyRate          decimal.Decimal
	TotalFee           decimal.Decimal
	LateFee            decimal.Decimal
	Status             domain.ReservationStatus
	CreatedAt          time.Time
}

type Option func(*ReservationService)

func WithIdempotency(store port.IdempotencyStore) Option {
	return func(s *ReservationService) { s.idempotency = store }
}

func WithMetrics(m *obs.Metrics) Option {
	return func(s *ReservationService) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ReservationService) { s.logger = l }
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationService) { s.now = now }
}

type ReservationService struct {
	users        port.UserRepository
	books        port.BookRepository
	reservations port.ReservationRepository
	ledger       port.InventoryLedger
	idempotency  port.IdempotencyStore
	metrics      *obs.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

func NewReservationService(
	users port.UserRepository,
	books port.BookRepository,
	reservations port.ReservationRepository,
	ledger port.InventoryLedger,
	opts ...Option,
) *ReservationService {
	s := &ReservationService{
		users:        users,
		books:        books,
		reservations: reservations,
		ledger:       ledger,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ReservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (view ReservationView, err error) {
	start := time.Now()
	defer func() { s.record("create", start, err) }()

	if req.RentalDays <= 0 {
		return ReservationView{}, fmt.Errorf("%w: rental days must be > 0, got %d", domain.ErrInvalidArgument, req.RentalDays)
	}

	if req.RequestID != "" && s.idempotency != nil {
		key := idempotencyKeyPrefix + req.RequestID

		claimed, claimErr := s.idempotency.SetIdempotency(ctx, key)
		if claimErr != nil {
			return ReservationView{}, fmt.Errorf("idempotency check failed: %w", claimErr)
		}
		if !claimed {
			return ReservationView{}, ErrDuplicateRequest
		}

		defer func() {
			if err == nil {
				return
			}
			if clearErr := s.idempotency.ClearIdempotency(context.WithoutCancel(ctx), key); clearErr != nil {
				s.logger.WarnContext(ctx, "failed to clear idempotency key", "key", key, "error", clearErr)
			}
		}()
	}

	user, err := s.users.GetUser(ctx, req.UserID)
	if err != nil {
		return ReservationView{}, fmt.Errorf("get user: %w", err)
	}

	book, err := s.books.FindBook(ctx, req.BookID)
	if err != nil {
		return ReservationView{}, fmt.Errorf("get book: %w", err)
	}

	if err = s.ledger.ReserveOne(ctx, &book); err != nil {
		if errors.Is(err, domain.ErrUnavailable) {
			return ReservationView{}, domain.ErrUnavailable
		}
		return ReservationView{}, fmt.Errorf("reserve copy of book %d: %w", book.ID, err)
	}

	now := s.now()
	startDate := domain.DateOf(now)
	if !req.StartDate.IsZero() {
		startDate = domain.DateOf(req.StartDate)
	}

	reservation := domain.Reservation{
		UserID:             user.ID,
		BookID:             book.ID,
		RentalDays:         req.RentalDays,
		StartDate:          startDate,
		ExpectedReturnDate: startDate.AddDate(0, 0, req.RentalDays),
		DailyRate:          book.Price,
		TotalFee:           domain.BaseFee(book.Price, req.RentalDays),
		LateFee:            decimal.Zero,
		Status:             domain.ReservationStatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	saved, err := s.reservations.Save(ctx, reservation)
	if err != nil {
		s.compensate(ctx, "release", &book, s.ledger.ReleaseOne)
		return ReservationView{}, fmt.Errorf("save reservation: %w", err)
	}

	s.logger.InfoContext(ctx, "reservation created",
		"reservation_id", saved.ID,
		"user_id", user.ID,
		"book_id", book.ID,
		"available", book.AvailableQuantity,
		"total_fee", saved.TotalFee.StringFixed(2),
	)

	return toView(saved, user, book), nil
}

func (s *ReservationService) ReturnBook(ctx context.Context, id int64, req ReturnBookRequest) (view ReservationView, err error) {
	start := time.Now()
	defer func() { s.record("return", start, err) }()

	reservation, err := s.reservations.FindByID(ctx, id)
	if err != nil {
		return ReservationView{}, fmt.Errorf("get reservation: %w", err)
	}
	if reservation.Status != domain.ReservationStatusActive {
		return ReservationView{}, fmt.Errorf("%w: reservation %d is already %s", domain.ErrInvalidState, id, reservation.Status)
	}

	returnDate := domain.DateOf(s.now())
	if !req.ReturnDate.IsZero() {
		returnDate = domain.DateOf(req.ReturnDate)
	}
	if returnDate.Before(reservation.StartDate) {
		return ReservationView{}, fmt.Errorf("%w: return date %s is before start date %s",
			domain.ErrInvalidArgument, returnDate.Format(time.DateOnly), reservation.StartDate.Format(time.DateOnly))
	}

	lateFee := domain.LateFee(reservation.DailyRate, domain.LateDays(reservation.ExpectedReturnDate, returnDate))

	book, err := s.books.FindBook(ctx, reservation.BookID)
	if err != nil {
		return ReservationView{}, fmt.Errorf("get book: %w", err)
	}

	active := reservation

	// The version-checked save claims the return; only the winner releases.
	reservation.LateFee = lateFee
	reservation.TotalFee = reservation.TotalFee.Add(lateFee)
	reservation.ActualReturnDate = &returnDate
	reservation.Status = domain.ReservationStatusReturned
	reservation.UpdatedAt = s.now()

	saved, err := s.reservations.Save(ctx, reservation)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return ReservationView{}, fmt.Errorf("%w: reservation %d was returned concurrently", domain.ErrInvalidState, id)
		}
		return ReservationView{}, fmt.Errorf("save reservation %d: %w", id, err)
	}

	if err = s.ledger.ReleaseOne(ctx, &book); err != nil {
		active.Version = saved.Version
		s.revertReturn(ctx, active)
		return ReservationView{}, fmt.Errorf("release copy of book %d: %w", book.ID, err)
	}

	if s.metrics != nil && lateFee.IsPositive() {
		s.metrics.LateFeeAmount.Observe(lateFee.InexactFloat64())
	}

	s.logger.InfoContext(ctx, "reservation returned",
		"reservation_id", saved.ID,
		"book_id", book.ID,
		"available", book.AvailableQuantity,
		"late_fee", lateFee.StringFixed(2),
		"total_fee", saved.TotalFee.StringFixed(2),
	)

	return toView(saved, s.userOrEmpty(ctx, saved.UserID), book), nil
}

// compensate undoes a ledger mutation after the reservation could not be
// saved. It runs detached from ctx cancellation.
func (s *ReservationService) compensate(ctx context.Context, op string, book *domain.Book, fn func(context.Context, *domain.Book) error) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	if err := fn(cctx, book); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL inventory compensation failed",
			"op", op, "book_id", book.ID, "error", err)
		if s.metrics != nil {
			s.metrics.CompensationFailures.Inc()
		}
		return
	}
	s.logger.WarnContext(ctx, "inventory compensated", "op", op, "book_id", book.ID)
}

// revertReturn puts a reservation back to ACTIVE after its copy could not be
// released. It runs detached from ctx cancellation.
func (s *ReservationService) revertReturn(ctx context.Context, r domain.Reservation) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	r.UpdatedAt = s.now()
	if _, err := s.reservations.Save(cctx, r); err != nil {
		s.logger.ErrorContext(ctx, "CRITICAL reservation revert failed",
			"reservation_id", r.ID, "book_id", r.BookID, "error", err)
		if s.metrics != nil {
			s.metrics.CompensationFailures.Inc()
		}
		return
	}
	s.logger.WarnContext(ctx, "reservation return reverted", "reservation_id", r.ID, "book_id", r.BookID)
}

func (s *ReservationService) record(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.OpLatencyMS.WithLabelValues(op).Observe(float64(time.Since(start).Milliseconds()))

	result := outcome(err)
	switch op {
	case "create":
		s.metrics.CreateTotal.WithLabelValues(result).Inc()
	case "return":
		s.metrics.ReturnTotal.WithLabelValues(result).Inc()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidState):
		return "invalid"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate"
	default:
		return "error"
	}
}
