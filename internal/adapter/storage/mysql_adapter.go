package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

const reservationColumns = `id, user_id, book_id, rental_days, start_date, expected_return_date,
	actual_return_date, daily_rate, total_fee, late_fee, status, version, created_at, updated_at`

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) SaveUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID <= 0 {
		return domain.User{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), email = VALUES(email)`,
		user.ID, user.Name, user.Email,
	)
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return user, nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id int64) (domain.User, error) {
	var u domain.User
	err := m.db.QueryRowContext(ctx, `SELECT id, name, email FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("query user: %w", err)
	}
	return u, nil
}

func (m *MySQLAdapter) FindBook(ctx context.Context, id int64) (domain.Book, error) {
	var b domain.Book
	err := m.db.QueryRowContext(ctx, `
		SELECT id, title, price, stock_quantity, available_quantity, version
		FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Price, &b.StockQuantity, &b.AvailableQuantity, &b.Version)

	if errors.Is(err, sql.ErrNoRows) {
		return domain.Book{}, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Book{}, fmt.Errorf("query book: %w", err)
	}
	return b, nil
}

func (m *MySQLAdapter) SaveBook(ctx context.Context, book domain.Book) (domain.Book, error) {
	if err := validateBook(book); err != nil {
		return domain.Book{}, err
	}

	_, err := m.db.ExecContext(ctx, `
		INSERT INTO books (id, title, price, stock_quantity, available_quantity, version)
		VALUES (?, ?, ?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE
			title = VALUES(title), price = VALUES(price),
			stock_quantity = VALUES(stock_quantity), available_quantity = VALUES(available_quantity),
			version = version + 1, updated_at = NOW()`,
		book.ID, book.Title, book.Price, book.StockQuantity, book.AvailableQuantity,
	)
	if err != nil {
		return domain.Book{}, fmt.Errorf("upsert book: %w", err)
	}
	return m.FindBook(ctx, book.ID)
}

func (m *MySQLAdapter) ReserveOne(ctx context.Context, book *domain.Book) error {
	return m.adjustAvailable(ctx, book, -1)
}

func (m *MySQLAdapter) ReleaseOne(ctx context.Context, book *domain.Book) error {
	return m.adjustAvailable(ctx, book, 1)
}

// adjustAvailable reads, decides and writes availability under a row lock so
// concurrent reservations of the same book are serialized.
func (m *MySQLAdapter) adjustAvailable(ctx context.Context, book *domain.Book, delta int) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current domain.Book
	err = tx.QueryRowContext(ctx, `
		SELECT id, title, price, stock_quantity, available_quantity, version
		FROM books WHERE id = ? FOR UPDATE`, book.ID,
	).Scan(&current.ID, &current.Title, &current.Price, &current.StockQuantity, &current.AvailableQuantity, &current.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("book %d: %w", book.ID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock book: %w", err)
	}

	next, err := nextAvailable(current, delta)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE books
		SET available_quantity = ?, version = version + 1, updated_at = NOW()
		WHERE id = ?`,
		next, book.ID,
	)
	if err != nil {
		return fmt.Errorf("update inventory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	current.AvailableQuantity = next
	current.Version++
	*book = current
	return nil
}

func (m *MySQLAdapter) Save(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	if r.ID == 0 {
		return m.insertReservation(ctx, r)
	}

	result, err := m.db.ExecContext(ctx, `
		UPDATE reservations
		SET rental_days = ?, start_date = ?, expected_return_date = ?, actual_return_date = ?,
			daily_rate = ?, total_fee = ?, late_fee = ?, status = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.RentalDays, r.StartDate, r.ExpectedReturnDate, nullDate(r.ActualReturnDate),
		r.DailyRate, r.TotalFee, r.LateFee, r.Status,
		r.UpdatedAt, r.ID, r.Version,
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("update reservation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("update reservation rows affected: %w", err)
	}
	if rows == 0 {
		if _, err := m.FindByID(ctx, r.ID); err != nil {
			return domain.Reservation{}, err
		}
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", r.ID, domain.ErrConflict)
	}

	r.Version++
	return r, nil
}

func (m *MySQLAdapter) insertReservation(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	r.Version = 1
	result, err := m.db.ExecContext(ctx, `
		INSERT INTO reservations (user_id, book_id, rental_days, start_date, expected_return_date,
			actual_return_date, daily_rate, total_fee, late_fee, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.BookID, r.RentalDays, r.StartDate, r.ExpectedReturnDate,
		nullDate(r.ActualReturnDate), r.DailyRate, r.TotalFee, r.LateFee, r.Status, r.Version,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reservation id: %w", err)
	}
	r.ID = id
	return r, nil
}

func (m *MySQLAdapter) FindByID(ctx context.Context, id int64) (domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("query reservation: %w", err)
	}
	list, err := scanReservations(rows)
	if err != nil {
		return domain.Reservation{}, err
	}
	if len(list) == 0 {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	return list[0], nil
}

func (m *MySQLAdapter) FindAll(ctx context.Context) ([]domain.Reservation, error) {
	return m.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations ORDER BY id`)
}

func (m *MySQLAdapter) FindByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return m.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE user_id = ? ORDER BY id`, userID)
}

func (m *MySQLAdapter) FindByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error) {
	return m.queryReservations(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE status = ? ORDER BY id`, status)
}

func (m *MySQLAdapter) FindOverdue(ctx context.Context, status domain.ReservationStatus, today time.Time) ([]domain.Reservation, error) {
	return m.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = ? AND expected_return_date < ?
		ORDER BY id`, status, domain.DateOf(today))
}

func (m *MySQLAdapter) queryReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	return scanReservations(rows)
}

func scanReservations(rows *sql.Rows) ([]domain.Reservation, error) {
	defer rows.Close()

	out := make([]domain.Reservation, 0)
	for rows.Next() {
		var (
			r        domain.Reservation
			returned sql.NullTime
		)
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.BookID, &r.RentalDays, &r.StartDate, &r.ExpectedReturnDate,
			&returned, &r.DailyRate, &r.TotalFee, &r.LateFee, &r.Status, &r.Version,
			&r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		if returned.Valid {
			d := returned.Time
			r.ActualReturnDate = &d
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservations: %w", err)
	}
	return out, nil
}

func nullDate(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
