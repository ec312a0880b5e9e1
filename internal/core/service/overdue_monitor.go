package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

const sweepTimeout = 30 * time.Second

// OverdueMonitor periodically counts overdue reservations and publishes the
// count. It only reads; overdue is never written back as a status.
type OverdueMonitor struct {
	svc      *ReservationService
	schedule string
	cron     *cron.Cron
}

// NewOverdueMonitor accepts any robfig/cron spec, e.g. "0 0 * * *" or "@every 1h".
func NewOverdueMonitor(svc *ReservationService, schedule string) *OverdueMonitor {
	return &OverdueMonitor{
		svc:      svc,
		schedule: schedule,
		cron:     cron.New(),
	}
}

func (m *OverdueMonitor) Start() error {
	_, err := m.cron.AddFunc(m.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		if _, err := m.Sweep(ctx); err != nil {
			m.svc.logger.Error("overdue sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule overdue sweep %q: %w", m.schedule, err)
	}

	m.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish.
func (m *OverdueMonitor) Stop() {
	<-m.cron.Stop().Done()
}

func (m *OverdueMonitor) Sweep(ctx context.Context) (int, error) {
	overdue, err := m.svc.ListOverdueReservations(ctx)
	if err != nil {
		return 0, err
	}

	today := m.svc.now()
	for _, r := range overdue {
		m.svc.logger.InfoContext(ctx, "reservation overdue",
			"reservation_id", r.ID,
			"user_id", r.UserID,
			"book_title", r.BookTitle,
			"expected_return_date", r.ExpectedReturnDate.Format(time.DateOnly),
			"days_late", domain.DaysBetween(r.ExpectedReturnDate, today),
		)
	}

	if m.svc.metrics != nil {
		m.svc.metrics.OverdueReservations.Set(float64(len(overdue)))
	}
	m.svc.logger.InfoContext(ctx, "overdue sweep finished", "overdue", len(overdue))

	return len(overdue), nil
}
