package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/book-reservation/internal/adapter/storage"
	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/bookreservation?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	require.NoError(t, adapter.Migrate(context.Background()))

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb),
		db:    adapter,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (e *testEnv) service() *service.ReservationService {
	return service.NewReservationService(e.db, e.db, e.db, e.db, service.WithIdempotency(e.cache))
}

func (e *testEnv) seed(t *testing.T, userID, bookID int64, copies int) {
	ctx := context.Background()
	_, err := e.db.SaveUser(ctx, domain.User{ID: userID, Name: "Juan Pérez", Email: "juan@example.com"})
	require.NoError(t, err)
	_, err = e.db.SaveBook(ctx, domain.Book{
		ID:                bookID,
		Title:             "The Lord of the Rings",
		Price:             decimal.RequireFromString("15.99"),
		StockQuantity:     copies,
		AvailableQuantity: copies,
	})
	require.NoError(t, err)
	e.mysql.ExecContext(ctx, `DELETE FROM reservations WHERE book_id = ?`, bookID)
}

func TestIntegration_LastCopyGoesToExactlyOneCaller(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seed(t, 910001, 910001, 1)
	svc := env.service()

	var successCount, unavailableCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateReservation(ctx, service.CreateReservationRequest{
				RequestID:  uuid.NewString(),
				UserID:     910001,
				BookID:     910001,
				RentalDays: 7,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrUnavailable):
				unavailableCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())
	assert.Equal(t, int32(9), unavailableCount.Load())

	var rows int
	env.mysql.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE book_id = ?`, 910001).Scan(&rows)
	assert.Equal(t, 1, rows)

	book, err := env.db.FindBook(ctx, 910001)
	require.NoError(t, err)
	assert.Equal(t, 0, book.AvailableQuantity)
}

func TestIntegration_CreateAndReturnLate(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seed(t, 910002, 910002, 3)
	svc := env.service()

	start := domain.DateOf(time.Now()).AddDate(0, 0, -10)
	created, err := svc.CreateReservation(ctx, service.CreateReservationRequest{
		RequestID:  uuid.NewString(),
		UserID:     910002,
		BookID:     910002,
		RentalDays: 7,
		StartDate:  start,
	})
	require.NoError(t, err)
	assert.Equal(t, "111.93", created.TotalFee.StringFixed(2))

	overdue, err := svc.ListOverdueReservations(ctx)
	require.NoError(t, err)
	found := false
	for _, v := range overdue {
		found = found || v.ID == created.ID
	}
	assert.True(t, found, "expected reservation to be overdue")

	returned, err := svc.ReturnBook(ctx, created.ID, service.ReturnBookRequest{ReturnDate: start.AddDate(0, 0, 10)})
	require.NoError(t, err)
	assert.Equal(t, "7.20", returned.LateFee.StringFixed(2))
	assert.Equal(t, "119.13", returned.TotalFee.StringFixed(2))
	assert.Equal(t, domain.ReservationStatusReturned, returned.Status)

	book, err := env.db.FindBook(ctx, 910002)
	require.NoError(t, err)
	assert.Equal(t, 3, book.AvailableQuantity)

	_, err = svc.ReturnBook(ctx, created.ID, service.ReturnBookRequest{})
	assert.True(t, errors.Is(err, domain.ErrInvalidState))
}

func TestIntegration_IdempotencyPreventsDoubleReservation(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seed(t, 910003, 910003, 10)
	svc := env.service()

	req := service.CreateReservationRequest{
		RequestID:  "same-request-id-" + uuid.NewString(),
		UserID:     910003,
		BookID:     910003,
		RentalDays: 3,
	}

	_, err := svc.CreateReservation(ctx, req)
	require.NoError(t, err)

	_, err = svc.CreateReservation(ctx, req)
	assert.True(t, errors.Is(err, service.ErrDuplicateRequest))

	book, err := env.db.FindBook(ctx, 910003)
	require.NoError(t, err)
	assert.Equal(t, 9, book.AvailableQuantity)
}
