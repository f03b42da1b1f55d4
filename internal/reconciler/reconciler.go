// Package reconciler matches verified payment notifications against
// bookings and commits the pending → paid transition exactly once per
// payment session.
package reconciler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/atelierzen/booking-backend/internal/counters"
	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/observability"
	"github.com/atelierzen/booking-backend/internal/store"
)

type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeAlreadyPaid
	OutcomeDuplicate
	OutcomeNoBooking
	OutcomeRecordedUnpaid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied_paid"
	case OutcomeAlreadyPaid:
		return "already_paid"
	case OutcomeDuplicate:
		return "duplicate_event"
	case OutcomeNoBooking:
		return "no_matching_booking"
	case OutcomeRecordedUnpaid:
		return "recorded_unpaid"
	default:
		return "unknown"
	}
}

// AuditSink records outcomes outside the transaction, best effort. The
// mongo adapter implements it; a nil sink disables auditing.
type AuditSink interface {
	RecordOutcome(ctx context.Context, n domain.PaymentNotification, outcome string, bookingID *uuid.UUID)
}

type Reconciler struct {
	store    store.Store
	counters counters.Sink
	audit    AuditSink
	logger   observability.Logger
}

func New(st store.Store, sink counters.Sink, audit AuditSink, logger observability.Logger) *Reconciler {
	return &Reconciler{store: st, counters: sink, audit: audit, logger: logger}
}

type paidEvent struct {
	BookingID   uuid.UUID `json:"booking_id"`
	SessionID   string    `json:"session_id"`
	AmountTotal int64     `json:"amount_total,omitempty"`
	Currency    string    `json:"currency,omitempty"`
}

// Process applies one verified notification. All storage steps run inside a
// single transaction: the ledger row, the booking update and the outbox row
// commit together or not at all, so a provider retry after any failure is
// always safe. Benign terminal outcomes (duplicate, already paid, no
// matching booking) return a nil error; the caller acknowledges them.
//
// When no booking matches the session, a ledger row is still written with a
// nil booking reference so the audit trail covers ordering races between
// booking creation and webhook delivery.
func (r *Reconciler) Process(ctx context.Context, n domain.PaymentNotification) (Outcome, error) {
	if n.SessionID == "" {
		r.counters.Inc(counters.Error)
		return 0, domain.ErrMissingSessionID
	}

	log := r.logger.WithField("event_id", n.EventID).WithField("session_id", n.SessionID)

	var outcome Outcome
	var bookingID *uuid.UUID

	start := time.Now()
	err := r.store.Reconcile(ctx, func(tx store.Tx) error {
		booking, err := tx.FindBookingBySessionID(ctx, n.SessionID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}

		// Business-level idempotence check first: a paid booking means
		// this session was fully handled, no new ledger row needed.
		if booking != nil && booking.Status == domain.BookingPaid {
			outcome = OutcomeAlreadyPaid
			bookingID = &booking.ID
			return nil
		}

		entry := domain.PaymentEvent{
			ID:          uuid.New(),
			EventID:     n.EventID,
			Type:        n.Type,
			SessionID:   n.SessionID,
			ProcessedAt: time.Now().UTC(),
		}
		if booking != nil {
			entry.BookingID = &booking.ID
			bookingID = &booking.ID
		}

		if err := tx.RegisterPaymentEvent(ctx, entry); err != nil {
			if errors.Is(err, domain.ErrDuplicateSession) {
				outcome = OutcomeDuplicate
				return nil
			}
			return err
		}

		if booking == nil {
			outcome = OutcomeNoBooking
			return nil
		}

		status := n.Status
		if status == domain.PaymentStatusUnknown {
			// Compatibility shim: older payloads carry no payment status.
			log.Warn("notification has no payment status, treating as paid")
			status = domain.PaymentStatusPaid
		}
		if status == domain.PaymentStatusNotPaid {
			outcome = OutcomeRecordedUnpaid
			return nil
		}

		if err := tx.MarkBookingPaid(ctx, booking.ID, paymentUpdate(n)); err != nil {
			return err
		}

		payload, err := json.Marshal(paidEvent{
			BookingID:   booking.ID,
			SessionID:   n.SessionID,
			AmountTotal: n.AmountTotal,
			Currency:    n.Currency,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertOutbox(ctx, store.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   booking.ID,
			EventType:     "booking.paid",
			Payload:       payload,
			DedupeKey:     n.SessionID,
		}); err != nil {
			return err
		}

		outcome = OutcomeApplied
		return nil
	})
	observability.DBTxDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		r.counters.Inc(counters.Error)
		return 0, errors.Wrap(err, "reconcile")
	}

	switch outcome {
	case OutcomeApplied:
		log.WithField("booking_id", bookingID).Info("booking marked as paid")
	case OutcomeAlreadyPaid, OutcomeDuplicate:
		r.counters.Inc(counters.Duplicate)
		log.Warn("notification already processed: ", outcome.String())
	case OutcomeNoBooking:
		log.Warn("no matching booking for payment session")
	case OutcomeRecordedUnpaid:
		log.Warn("payment not completed, booking left pending")
	}

	if r.audit != nil {
		r.audit.RecordOutcome(ctx, n, outcome.String(), bookingID)
	}

	return outcome, nil
}

func paymentUpdate(n domain.PaymentNotification) domain.PaymentUpdate {
	var upd domain.PaymentUpdate
	if n.PaymentIntentID != "" {
		upd.PaymentIntentID = &n.PaymentIntentID
	}
	if n.AmountTotal > 0 {
		upd.AmountTotal = &n.AmountTotal
	}
	if n.Currency != "" {
		upd.Currency = &n.Currency
	}
	return upd
}
