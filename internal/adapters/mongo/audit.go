package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/observability"
)

// AuditLogger mirrors webhook outcomes into a mongo collection. It runs
// outside the reconciliation transaction and is best effort: the payment
// event ledger, not this collection, answers "was this processed".
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("webhook_audit"),
		logger: logger,
	}
}

type outcomeDoc struct {
	ID          uuid.UUID  `bson:"_id"`
	EventID     string     `bson:"event_id"`
	EventType   string     `bson:"event_type"`
	SessionID   string     `bson:"session_id"`
	BookingID   *uuid.UUID `bson:"booking_id,omitempty"`
	Outcome     string     `bson:"outcome"`
	AmountTotal int64      `bson:"amount_total,omitempty"`
	Currency    string     `bson:"currency,omitempty"`
	RecordedAt  time.Time  `bson:"recorded_at"`
}

func (a *AuditLogger) RecordOutcome(ctx context.Context, n domain.PaymentNotification, outcome string, bookingID *uuid.UUID) {
	doc := outcomeDoc{
		ID:          uuid.New(),
		EventID:     n.EventID,
		EventType:   n.Type,
		SessionID:   n.SessionID,
		BookingID:   bookingID,
		Outcome:     outcome,
		AmountTotal: n.AmountTotal,
		Currency:    n.Currency,
		RecordedAt:  time.Now().UTC(),
	}
	if _, err := a.coll.InsertOne(ctx, doc); err != nil {
		a.logger.WithError(err).Error("failed to insert webhook audit doc")
	}
}
