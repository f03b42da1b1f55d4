// Package jsonfile is a single-file storage driver for development and
// tests. It serializes every operation behind one process-local mutex, so
// the ledger uniqueness check is only atomic within this process. It must
// never back a production deployment: a second process (or a crash between
// read and write) can break the idempotence guarantee that the postgres
// driver enforces with real unique constraints.
package jsonfile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/store"
)

type Store struct {
	mu   sync.Mutex
	path string
}

type fileState struct {
	Bookings []domain.Booking      `json:"bookings"`
	Ledger   []domain.PaymentEvent `json:"ledger"`
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (*fileState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &fileState{}, nil
	}
	if err != nil {
		return nil, err
	}
	var st fileState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, errors.Wrap(err, "corrupt data file")
	}
	return &st, nil
}

func (s *Store) save(st *fileState) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

func (s *Store) CreateBooking(ctx context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.Bookings = append(st.Bookings, b)
	return s.save(st)
}

func (s *Store) AttachSessionID(ctx context.Context, bookingID uuid.UUID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	for i := range st.Bookings {
		if st.Bookings[i].ID == bookingID {
			st.Bookings[i].SessionID = &sessionID
			return s.save(st)
		}
	}
	return domain.ErrNotFound
}

func (s *Store) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	bookings := append([]domain.Booking(nil), st.Bookings...)
	sort.Slice(bookings, func(i, j int) bool {
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
	return bookings, nil
}

func (s *Store) ListPaymentEvents(ctx context.Context, limit int) ([]domain.PaymentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return nil, err
	}
	events := append([]domain.PaymentEvent(nil), st.Ledger...)
	sort.Slice(events, func(i, j int) bool {
		return events[i].ProcessedAt.After(events[j].ProcessedAt)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// Reconcile applies fn against an in-memory copy of the file and writes it
// back only when fn succeeds, which gives per-process all-or-nothing
// semantics.
func (s *Store) Reconcile(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&txView{state: st}); err != nil {
		return err
	}
	return s.save(st)
}

type txView struct {
	state *fileState
}

func (v *txView) FindBookingBySessionID(ctx context.Context, sessionID string) (*domain.Booking, error) {
	for i := range v.state.Bookings {
		b := v.state.Bookings[i]
		if b.SessionID != nil && *b.SessionID == sessionID {
			return &b, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (v *txView) RegisterPaymentEvent(ctx context.Context, ev domain.PaymentEvent) error {
	for _, existing := range v.state.Ledger {
		if existing.SessionID == ev.SessionID || existing.EventID == ev.EventID {
			return domain.ErrDuplicateSession
		}
	}
	v.state.Ledger = append(v.state.Ledger, ev)
	return nil
}

func (v *txView) MarkBookingPaid(ctx context.Context, bookingID uuid.UUID, upd domain.PaymentUpdate) error {
	for i := range v.state.Bookings {
		if v.state.Bookings[i].ID != bookingID {
			continue
		}
		b := &v.state.Bookings[i]
		b.Status = domain.BookingPaid
		if upd.PaymentIntentID != nil {
			b.PaymentIntentID = upd.PaymentIntentID
		}
		if upd.AmountTotal != nil {
			b.AmountTotal = upd.AmountTotal
		}
		if upd.Currency != nil {
			b.Currency = upd.Currency
		}
		return nil
	}
	return domain.ErrNotFound
}

// InsertOutbox is a no-op: the file driver runs without a broker.
func (v *txView) InsertOutbox(ctx context.Context, rec store.OutboxRecord) error {
	return nil
}
