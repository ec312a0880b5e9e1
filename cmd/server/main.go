package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc"

	"github.com/rl1809/book-reservation/internal/adapter/handler"
	"github.com/rl1809/book-reservation/internal/adapter/storage"
	"github.com/rl1809/book-reservation/internal/config"
	"github.com/rl1809/book-reservation/internal/core/domain"
	"github.com/rl1809/book-reservation/internal/core/service"
	"github.com/rl1809/book-reservation/internal/obs"
	"github.com/rl1809/book-reservation/internal/port"
)

const (
	demoUserID     = 1
	demoBookID     = 258027
	demoBookStock  = 10
	demoBookTitle  = "The Lord of the Rings"
	demoDailyPrice = "15.99"
)

// backend bundles whichever storage satisfies the ports.
type backend interface {
	port.UserRepository
	port.BookRepository
	port.ReservationRepository
	port.InventoryLedger
	SaveUser(ctx context.Context, user domain.User) (domain.User, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		store   backend
		closers []func() error
	)

	switch cfg.Storage {
	case config.StorageMySQL:
		// Initialize MySQL
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			fatal(logger, "failed to connect mysql", err)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			fatal(logger, "failed to ping mysql", err)
		}
		logger.Info("connected to mysql")

		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.Migrate(ctx); err != nil {
			fatal(logger, "failed to migrate mysql", err)
		}
		store = mysqlAdapter
		closers = append(closers, db.Close)
	default:
		store = storage.NewMemoryStore()
		logger.Info("using in-memory storage")
	}

	var idempotency port.IdempotencyStore
	if cfg.RedisAddr != "" {
		// Initialize Redis
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			fatal(logger, "failed to connect redis", err)
		}
		logger.Info("connected to redis")
		idempotency = storage.NewRedisAdapter(rdb)
		closers = append(closers, rdb.Close)
	} else if mem, ok := store.(*storage.MemoryStore); ok {
		idempotency = mem
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, store); err != nil {
			fatal(logger, "failed to seed demo data", err)
		}
		logger.Info("seeded demo data", "user_id", demoUserID, "book_id", demoBookID, "stock", demoBookStock)
	}

	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	// Initialize service
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithMetrics(metrics),
	}
	if idempotency != nil {
		opts = append(opts, service.WithIdempotency(idempotency))
	}
	reservationService := service.NewReservationService(store, store, store, store, opts...)

	monitor := service.NewOverdueMonitor(reservationService, cfg.OverdueSchedule)
	if err := monitor.Start(); err != nil {
		fatal(logger, "failed to start overdue monitor", err)
	}
	logger.Info("overdue monitor started", "schedule", cfg.OverdueSchedule)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	handler.RegisterReservationServiceServer(grpcServer, handler.NewGRPCHandler(reservationService, logger))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		fatal(logger, "failed to listen", err)
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	mux := handler.NewHTTPHandler(reservationService, logger).Routes()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: mux,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down...")

	// Stop HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown", "error", err)
	}
	logger.Info("HTTP server stopped")

	// Stop gRPC server
	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	monitor.Stop()
	logger.Info("overdue monitor stopped")

	// Close connections
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Error("close", "error", err)
		}
	}
	logger.Info("connections closed")
}

// seedDemo mirrors a small catalog so the API is usable out of the box. An
// existing demo book keeps its current availability.
func seedDemo(ctx context.Context, store backend) error {
	if _, err := store.SaveUser(ctx, domain.User{ID: demoUserID, Name: "Demo Reader", Email: "reader@example.com"}); err != nil {
		return err
	}

	if _, err := store.FindBook(ctx, demoBookID); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	_, err := store.SaveBook(ctx, domain.Book{
		ID:                demoBookID,
		Title:             demoBookTitle,
		Price:             decimal.RequireFromString(demoDailyPrice),
		StockQuantity:     demoBookStock,
		AvailableQuantity: demoBookStock,
	})
	return err
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
