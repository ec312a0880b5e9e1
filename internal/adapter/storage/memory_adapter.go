package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/book-reservation/internal/core/domain"
)

// MemoryStore keeps users, books, reservations and idempotency keys in
// process. It implements every repository port and the inventory ledger, and
// backs the service when STORAGE=memory as well as the unit tests.
type MemoryStore struct {
	mu                sync.RWMutex
	users             map[int64]domain.User
	books             map[int64]domain.Book
	reservations      map[int64]domain.Reservation
	nextReservationID int64
	idempotency       map[string]struct{}

	locksMu   sync.Mutex
	bookLocks map[int64]*sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[int64]domain.User),
		books:        make(map[int64]domain.Book),
		reservations: make(map[int64]domain.Reservation),
		idempotency:  make(map[string]struct{}),
		bookLocks:    make(map[int64]*sync.Mutex),
	}
}

// bookLock serializes every read-decide-write on one book.
func (s *MemoryStore) bookLock(id int64) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	l, ok := s.bookLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.bookLocks[id] = l
	}
	return l
}

func (s *MemoryStore) SaveUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID <= 0 {
		return domain.User{}, fmt.Errorf("%w: user id is required", domain.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return user, nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id int64) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return u, nil
}

func (s *MemoryStore) FindBook(ctx context.Context, id int64) (domain.Book, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.books[id]
	if !ok {
		return domain.Book{}, fmt.Errorf("book %d: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

func (s *MemoryStore) SaveBook(ctx context.Context, book domain.Book) (domain.Book, error) {
	if err := validateBook(book); err != nil {
		return domain.Book{}, err
	}

	l := s.bookLock(book.ID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.books[book.ID]; ok {
		book.Version = existing.Version + 1
	}
	s.books[book.ID] = book
	return book, nil
}

func (s *MemoryStore) ReserveOne(ctx context.Context, book *domain.Book) error {
	return s.adjustAvailable(book, -1)
}

func (s *MemoryStore) ReleaseOne(ctx context.Context, book *domain.Book) error {
	return s.adjustAvailable(book, 1)
}

func (s *MemoryStore) adjustAvailable(book *domain.Book, delta int) error {
	l := s.bookLock(book.ID)
	l.Lock()
	defer l.Unlock()

	current, err := s.FindBook(context.Background(), book.ID)
	if err != nil {
		return err
	}

	next, err := nextAvailable(current, delta)
	if err != nil {
		return err
	}
	current.AvailableQuantity = next
	current.Version++

	s.mu.Lock()
	s.books[current.ID] = current
	s.mu.Unlock()

	*book = current
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, r domain.Reservation) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == 0 {
		s.nextReservationID++
		r.ID = s.nextReservationID
		r.Version = 1
		s.reservations[r.ID] = r
		return r, nil
	}

	existing, ok := s.reservations[r.ID]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", r.ID, domain.ErrNotFound)
	}
	if existing.Version != r.Version {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", r.ID, domain.ErrConflict)
	}
	r.Version++
	s.reservations[r.ID] = r
	return r, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id int64) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[id]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("reservation %d: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

func (s *MemoryStore) FindAll(ctx context.Context) ([]domain.Reservation, error) {
	return s.filter(func(domain.Reservation) bool { return true }), nil
}

func (s *MemoryStore) FindByUser(ctx context.Context, userID int64) ([]domain.Reservation, error) {
	return s.filter(func(r domain.Reservation) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) FindByStatus(ctx context.Context, status domain.ReservationStatus) ([]domain.Reservation, error) {
	return s.filter(func(r domain.Reservation) bool { return r.Status == status }), nil
}

func (s *MemoryStore) FindOverdue(ctx context.Context, status domain.ReservationStatus, today time.Time) ([]domain.Reservation, error) {
	today = domain.DateOf(today)
	return s.filter(func(r domain.Reservation) bool {
		return r.Status == status && r.ExpectedReturnDate.Before(today)
	}), nil
}

func (s *MemoryStore) filter(keep func(domain.Reservation) bool) []domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Reservation, 0)
	for _, r := range s.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) SetIdempotency(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.idempotency[key]; ok {
		return false, nil
	}
	s.idempotency[key] = struct{}{}
	return true, nil
}

func (s *MemoryStore) ClearIdempotency(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.idempotency, key)
	return nil
}
