package handler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/book-reservation/internal/adapter/storage"
	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
)

const (
	testUserID = int64(1)
	testBookID = int64(258027)
)

var testNow = time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, available int) (*service.ReservationService, *storage.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	store := storage.NewMemoryStore()
	_, err := store.SaveUser(ctx, domain.User{ID: testUserID, Name: "Juan Pérez", Email: "juan@example.com"})
	require.NoError(t, err)
	_, err = store.SaveBook(ctx, domain.Book{
		ID:                testBookID,
		Title:             "The Lord of the Rings",
		Price:             decimal.RequireFromString("15.99"),
		StockQuantity:     10,
		AvailableQuantity: available,
	})
	require.NoError(t, err)

	svc := service.NewReservationService(store, store, store, store,
		service.WithIdempotency(store),
		service.WithLogger(discardLogger()),
		service.WithClock(func() time.Time { return testNow }),
	)
	return svc, store
}
