package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/store"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Reconcile runs fn in a serializable transaction. Concurrent registrations
// racing on the same session id resolve through the unique constraint: one
// commits, the other observes domain.ErrDuplicateSession.
func (r *Repository) Reconcile(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return err
	}

	if err := fn(&txView{tx: tx}); err != nil {
		return mapSerializationFailure(err)
	}

	// The conflict can also surface at commit under serializable isolation.
	if err := tx.Commit(ctx); err != nil {
		return mapSerializationFailure(err)
	}
	return nil
}

func mapSerializationFailure(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == serializationFailureCode {
		return domain.ErrSerializationFailure
	}
	return err
}

func (r *Repository) CreateBooking(ctx context.Context, b domain.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, first_name, last_name, email, date, time, status, session_id, payment_intent_id, amount_total, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, b.ID, b.FirstName, b.LastName, b.Email, b.Date, b.Time, b.Status, b.SessionID, b.PaymentIntentID, b.AmountTotal, b.Currency, b.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) AttachSessionID(ctx context.Context, bookingID uuid.UUID, sessionID string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET session_id = $2 WHERE id = $1
	`, bookingID, sessionID)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListBookings(ctx context.Context) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, first_name, last_name, email, date, time, status, session_id, payment_intent_id, amount_total, currency, created_at
		FROM bookings ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.FirstName, &b.LastName, &b.Email, &b.Date, &b.Time, &b.Status, &b.SessionID, &b.PaymentIntentID, &b.AmountTotal, &b.Currency, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (r *Repository) ListPaymentEvents(ctx context.Context, limit int) ([]domain.PaymentEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, type, session_id, booking_id, processed_at
		FROM payment_events ORDER BY processed_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.PaymentEvent
	for rows.Next() {
		var ev domain.PaymentEvent
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.Type, &ev.SessionID, &ev.BookingID, &ev.ProcessedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// txView exposes the reconciliation operations on a single open transaction.
type txView struct {
	tx pgx.Tx
}

func (v *txView) FindBookingBySessionID(ctx context.Context, sessionID string) (*domain.Booking, error) {
	var b domain.Booking
	err := v.tx.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, date, time, status, session_id, payment_intent_id, amount_total, currency, created_at
		FROM bookings WHERE session_id = $1
	`, sessionID).Scan(&b.ID, &b.FirstName, &b.LastName, &b.Email, &b.Date, &b.Time, &b.Status, &b.SessionID, &b.PaymentIntentID, &b.AmountTotal, &b.Currency, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// RegisterPaymentEvent must not raise a unique violation: that would abort
// the transaction and turn the later commit into a rollback. ON CONFLICT DO
// NOTHING keeps the transaction usable so a duplicate can commit as a no-op.
func (v *txView) RegisterPaymentEvent(ctx context.Context, ev domain.PaymentEvent) error {
	result, err := v.tx.Exec(ctx, `
		INSERT INTO payment_events (id, event_id, type, session_id, booking_id, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, ev.ID, ev.EventID, ev.Type, ev.SessionID, ev.BookingID, ev.ProcessedAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrDuplicateSession
	}
	return nil
}

func (v *txView) MarkBookingPaid(ctx context.Context, bookingID uuid.UUID, upd domain.PaymentUpdate) error {
	result, err := v.tx.Exec(ctx, `
		UPDATE bookings SET
			status = $2,
			payment_intent_id = COALESCE($3, payment_intent_id),
			amount_total = COALESCE($4, amount_total),
			currency = COALESCE($5, currency)
		WHERE id = $1
	`, bookingID, domain.BookingPaid, upd.PaymentIntentID, upd.AmountTotal, upd.Currency)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
