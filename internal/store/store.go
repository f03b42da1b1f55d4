// Package store defines the storage capability consumed by the HTTP layer
// and the reconciler. Two implementations exist: adapters/postgres (the
// production driver, with real transactional uniqueness) and
// adapters/jsonfile (a dev-only file driver).
package store

import (
	"context"
	"time"

	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/google/uuid"
)

type Store interface {
	CreateBooking(ctx context.Context, b domain.Booking) error
	AttachSessionID(ctx context.Context, bookingID uuid.UUID, sessionID string) error
	ListBookings(ctx context.Context) ([]domain.Booking, error)
	ListPaymentEvents(ctx context.Context, limit int) ([]domain.PaymentEvent, error)

	// Reconcile runs fn inside a single atomic unit of work: either every
	// mutation made through tx commits, or none does. The reconciler
	// performs the ledger insert and the booking update through this.
	Reconcile(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transactional view the reconciler operates on.
type Tx interface {
	// FindBookingBySessionID returns domain.ErrNotFound when no booking
	// references the session.
	FindBookingBySessionID(ctx context.Context, sessionID string) (*domain.Booking, error)

	// RegisterPaymentEvent appends a ledger row. Returns
	// domain.ErrDuplicateSession when the session id (or event id) is
	// already registered.
	RegisterPaymentEvent(ctx context.Context, ev domain.PaymentEvent) error

	// MarkBookingPaid transitions the booking to PAID and persists the
	// enrichment fields carried by the notification.
	MarkBookingPaid(ctx context.Context, bookingID uuid.UUID, upd domain.PaymentUpdate) error

	// InsertOutbox records an event for asynchronous publication in the
	// same transaction. Drivers without an outbox treat this as a no-op.
	InsertOutbox(ctx context.Context, rec OutboxRecord) error
}

type OutboxRecord struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Status        string // NEW, PUBLISHED, FAILED
	DedupeKey     string
}
