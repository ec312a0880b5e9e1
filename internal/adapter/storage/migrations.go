package storage

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id    BIGINT       NOT NULL PRIMARY KEY,
		name  VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		id                 BIGINT        NOT NULL PRIMARY KEY,
		title              VARCHAR(512)  NOT NULL,
		price              DECIMAL(12,2) NOT NULL,
		stock_quantity     INT           NOT NULL,
		available_quantity INT           NOT NULL,
		version            BIGINT        NOT NULL DEFAULT 0,
		updated_at         TIMESTAMP     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT chk_books_available CHECK (available_quantity >= 0 AND available_quantity <= stock_quantity)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id                   BIGINT        NOT NULL AUTO_INCREMENT PRIMARY KEY,
		user_id              BIGINT        NOT NULL,
		book_id              BIGINT        NOT NULL,
		rental_days          INT           NOT NULL,
		start_date           DATE          NOT NULL,
		expected_return_date DATE          NOT NULL,
		actual_return_date   DATE          NULL,
		daily_rate           DECIMAL(12,2) NOT NULL,
		total_fee            DECIMAL(12,2) NOT NULL,
		late_fee             DECIMAL(12,2) NOT NULL,
		status               VARCHAR(16)   NOT NULL,
		version              BIGINT        NOT NULL,
		created_at           DATETIME(6)   NOT NULL,
		updated_at           DATETIME(6)   NOT NULL,
		INDEX idx_reservations_user (user_id),
		INDEX idx_reservations_status_due (status, expected_return_date)
	)`,
}

// Migrate creates the tables if they do not exist yet.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
