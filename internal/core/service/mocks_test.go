package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

// Mock repositories and ledger backed by maps
type mockStore struct {
	mu           sync.Mutex
	users        map[int64]domain.User
	books        map[int64]domain.Book
	reservations map[int64]domain.Reservation
	nextID       int64
	idempotency  map[string]bool

	saveErr      error // returned by Save when set
	releaseErr   error // returned by ReleaseOne when set
	userLookups  int
	releaseCalls int
	reserveCalls int
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[int64]domain.User),
		books:        make(map[int64]domain.Book),
		reservations: make(map[int64]domain.Reservation),
		idempotency:  make(map[string]bool),
	}
}

func (m *mockStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLookups++

	u, ok := m.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (m *mockStore) FindBook(ctx context.Context, id int64) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (m *mockStore) SaveBook(ctx context.Context, book domain.Book) (domain.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[book.ID] = book
	return book, nil
}

func (m *mockStore) ReserveOne(ctx context.Context, book *domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reserveCalls++

	b, ok := m.books[book.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if b.AvailableQuantity == 0 {
		return domain.ErrUnavailable
	}
	b.AvailableQuantity--
	m.books[b.ID] = b
	*book = b
	return nil
}

func (m *mockStore) ReleaseOne(ctx context.Context, book *domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseCalls++
	if m.releaseErr != nil {
		return m.releaseErr
	}

	b, ok := m.books[book.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if b.AvailableQuantity >= b.StockQuantity {
		return domain.ErrInvalidState
	}
	b.AvailableQuantity++
	m.books[b.ID] = b
	*book = b
	return nil
}

func (m *mockStore) Save(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return domain.Reservation{}, m.saveErr
	}
	if r.ID == 0 {
		m.nextID++
		r.ID = m.nextID
		r.Version = 1
		m.reservations[r.ID] = r
		return r, nil
	}
	existing, ok := m.reservations[r.ID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if existing.Version != r.Version {
		return domain.Reservation{}, domain.ErrConflict
	}
	r.Version++
	m.reservations[r.ID] = r
	return r, nil
}

func (m *mockStore) FindByID(ctx context.Context, id int64) (domain.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reservations[id]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (m *mockStore) FindAll(ctx context.Context) ([]domain.Reservation, error) {
	return m.filter(func(domain.Reservation) bool { return true }), nil
}

func (m *mockStore) FindByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool { return r.UserID == userID }), nil
}

func (m *mockStore) FindByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool { return r.Status == status }), nil
}

func (m *mockStore) FindOverdue(ctx context.Context, status domain.ReservationStatus, today time.Time) ([]domain.Reservation, error) {
	return m.filter(func(r domain.Reservation) bool {
		return r.Status == status && r.ExpectedReturnDate.Before(today)
	}), nil
}

func (m *mockStore) filter(keep func(domain.Reservation) bool) []domain.Reservation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Reservation
	for _, r := range m.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotency[key] {
		return false, nil
	}
	m.idempotency[key] = true
	return true, nil
}

func (m *mockStore) ClearIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotency, key)
	return nil
}

func (m *mockStore) activeCount() int {
	return len(m.filter(func(r domain.Reservation) bool { return r.Status == domain.ReservationStatusActive }))
}

func (m *mockStore) available(bookID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[bookID].AvailableQuantity
}

func (m *mockStore) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

// gatedLedger parks every ReleaseOne after it took effect until proceed is
// closed, signalling on released.
type gatedLedger struct {
	*mockStore
	released chan struct{}
	proceed  chan struct{}
}

func newGatedLedger(store *mockStore) *gatedLedger {
	return &gatedLedger{
		mockStore: store,
		released:  make(chan struct{}, 8),
		proceed:   make(chan struct{}),
	}
}

func (g *gatedLedger) ReleaseOne(ctx context.Context, book *domain.Book) error {
	err := g.mockStore.ReleaseOne(ctx, book)
	g.released <- struct{}{}
	<-g.proceed
	return err
}

// failAfterSaveStore lets the first Save through and fails the rest.
type failAfterSaveStore struct {
	*mockStore
	saves int
}

func (f *failAfterSaveStore) Save(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	f.saves++
	if f.saves > 1 {
		return domain.Reservation{}, errors.New("connection reset")
	}
	return f.mockStore.Save(ctx, r)
}
