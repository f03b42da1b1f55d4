// Package payment wraps the Stripe SDK: webhook signature verification and
// checkout session creation.
package payment

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/atelierzen/booking-backend/internal/domain"
)

// EventTypeCheckoutCompleted is the only event type the reconciler acts on.
const EventTypeCheckoutCompleted = "checkout.session.completed"

// Verifier authenticates a raw webhook payload. Implementations must work
// on the exact bytes received: the signature is computed over them.
type Verifier interface {
	Verify(payload []byte, sigHeader string) (domain.PaymentNotification, error)
}

type WebhookVerifier struct {
	secret string
}

func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

func (v *WebhookVerifier) Verify(payload []byte, sigHeader string) (domain.PaymentNotification, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		return domain.PaymentNotification{}, errors.Mark(err, domain.ErrInvalidSignature)
	}

	n := domain.PaymentNotification{
		EventID: event.ID,
		Type:    string(event.Type),
	}

	if n.Type != EventTypeCheckoutCompleted {
		return n, nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return domain.PaymentNotification{}, errors.Wrap(err, "decode checkout session")
	}

	n.SessionID = session.ID
	n.AmountTotal = session.AmountTotal
	n.Currency = string(session.Currency)
	if session.PaymentIntent != nil {
		n.PaymentIntentID = session.PaymentIntent.ID
	}

	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		n.Status = domain.PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		n.Status = domain.PaymentStatusNotPaid
	default:
		n.Status = domain.PaymentStatusUnknown
	}

	return n, nil
}
