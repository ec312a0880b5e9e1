package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/book-reservation/internal/adapter/storage"
	"github.com/rl1809/book-reservation/internal/config"
	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
	"github.com/rl1809/book-reservation/internal/port"
)

const (
	userID        = 990001
	bookID        = 990001
	initialStock  = 20
	totalRequests = 50
	rentalDays    = 7
)

type backend interface {
	port.UserRepository
	port.BookRepository
	port.ReservationRepository
	port.InventoryLedger
	SaveUser(ctx context.Context, user domain.User) (domain.User, error)
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var (
		store       backend
		idempotency port.IdempotencyStore
	)
	if cfg.Storage == config.StorageMySQL {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatalf("failed to connect mysql: %v", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatalf("failed to ping mysql: %v", err)
		}

		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}

		// Clear previous test data
		if _, err := db.ExecContext(ctx, `DELETE FROM reservations WHERE book_id = ?`, bookID); err != nil {
			log.Fatalf("failed to clear reservations: %v", err)
		}
		store = mysqlAdapter

		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect redis: %v", err)
		}
		idempotency = storage.NewRedisAdapter(rdb)
	} else {
		memoryStore := storage.NewMemoryStore()
		store = memoryStore
		idempotency = memoryStore
	}

	if _, err := store.SaveUser(ctx, domain.User{ID: userID, Name: "stress", Email: "stress@example.com"}); err != nil {
		log.Fatalf("failed to save user: %v", err)
	}
	if _, err := store.SaveBook(ctx, domain.Book{
		ID:                bookID,
		Title:             "stress-test-book",
		Price:             decimal.RequireFromString("15.99"),
		StockQuantity:     initialStock,
		AvailableQuantity: initialStock,
	}); err != nil {
		log.Fatalf("failed to set stock: %v", err)
	}

	reservationService := service.NewReservationService(store, store, store, store, service.WithIdempotency(idempotency))

	// Counters
	var successCount atomic.Int32
	var unavailableCount atomic.Int32
	var otherCount atomic.Int32
	var acceptedID atomic.Value

	// Spawn concurrent requests
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			requestID := uuid.NewString()
			_, err := reservationService.CreateReservation(ctx, service.CreateReservationRequest{
				RequestID:  requestID,
				UserID:     userID,
				BookID:     bookID,
				RentalDays: rentalDays,
			})
			switch {
			case err == nil:
				successCount.Add(1)
				acceptedID.Store(requestID)
			case errors.Is(err, domain.ErrUnavailable):
				unavailableCount.Add(1)
			default:
				otherCount.Add(1)
				log.Printf("unexpected error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Results
	success := successCount.Load()
	unavailable := unavailableCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Storage:          %s\n", cfg.Storage)
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Unavailable:      %d\n", unavailable)
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	// Assertions
	if success == int32(initialStock) && unavailable == int32(totalRequests-initialStock) {
		fmt.Printf("PASS: Exactly %d reservations succeeded, %d were unavailable\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d unavailable, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, unavailable)
	}

	// Verify final availability
	book, err := store.FindBook(ctx, bookID)
	if err != nil {
		log.Fatalf("failed to read book: %v", err)
	}
	fmt.Printf("Final Availability: %d\n", book.AvailableQuantity)

	if book.AvailableQuantity == 0 {
		fmt.Println("PASS: Stock depleted to 0")
	} else {
		fmt.Printf("FAIL: Expected availability 0, got %d\n", book.AvailableQuantity)
	}

	reservations, err := store.FindByUser(ctx, userID)
	if err != nil {
		log.Fatalf("failed to list reservations: %v", err)
	}
	if len(reservations) == initialStock {
		fmt.Printf("PASS: %d reservations stored\n", len(reservations))
	} else {
		fmt.Printf("FAIL: Expected %d reservations stored, got %d\n", initialStock, len(reservations))
	}

	// Replaying an accepted request must not reserve again
	if id, ok := acceptedID.Load().(string); ok {
		_, err := reservationService.CreateReservation(ctx, service.CreateReservationRequest{
			RequestID:  id,
			UserID:     userID,
			BookID:     bookID,
			RentalDays: rentalDays,
		})
		if errors.Is(err, service.ErrDuplicateRequest) {
			fmt.Println("PASS: Replayed request rejected as duplicate")
		} else {
			fmt.Printf("FAIL: Expected duplicate request error, got %v\n", err)
		}
	}
}
