package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending BookingStatus = "PENDING"
	BookingPaid    BookingStatus = "PAID"
)

// Booking is the reservation being paid for. SessionID links it to the
// payment provider's checkout session and is unique when present.
type Booking struct {
	ID              uuid.UUID
	FirstName       string
	LastName        string
	Email           string
	Date            string
	Time            string
	Status          BookingStatus
	SessionID       *string
	PaymentIntentID *string
	AmountTotal     *int64
	Currency        *string
	CreatedAt       time.Time
}

// PaymentEvent is an append-only ledger row proving a provider notification
// was processed. SessionID is the primary idempotence key, EventID a
// secondary defensive one; both are unique at the storage layer. BookingID
// is a weak reference: nil means no booking matched at processing time.
type PaymentEvent struct {
	ID          uuid.UUID
	EventID     string
	Type        string
	SessionID   string
	BookingID   *uuid.UUID
	ProcessedAt time.Time
}

// PaymentStatus is the payment state reported inside a verified
// notification. Unknown means the payload carried no status field; older
// provider payloads omit it.
type PaymentStatus int

const (
	PaymentStatusUnknown PaymentStatus = iota
	PaymentStatusPaid
	PaymentStatusNotPaid
)

func (s PaymentStatus) String() string {
	switch s {
	case PaymentStatusPaid:
		return "paid"
	case PaymentStatusNotPaid:
		return "not_paid"
	default:
		return "unknown"
	}
}

// PaymentNotification is a provider webhook event after signature
// verification, reduced to the fields the reconciler needs.
type PaymentNotification struct {
	EventID         string
	Type            string
	SessionID       string
	PaymentIntentID string
	AmountTotal     int64
	Currency        string
	Status          PaymentStatus
}

// PaymentUpdate carries the values persisted onto a booking when it is
// marked paid. Nil fields preserve whatever the booking already has.
type PaymentUpdate struct {
	PaymentIntentID *string
	AmountTotal     *int64
	Currency        *string
}
