package payment_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/payment"
)

const testSecret = "whsec_test_secret"

// signPayload builds a Stripe v1 signature header over the exact payload
// bytes; the SDK verifies but does not sign, so we compute the HMAC here.
func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts.Unix())
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(eventID, sessionID, paymentStatus string) []byte {
	session := fmt.Sprintf(`{"id":%q,"object":"checkout.session","payment_intent":"pi_1","amount_total":6000,"currency":"eur"`, sessionID)
	if paymentStatus != "" {
		session += fmt.Sprintf(`,"payment_status":%q`, paymentStatus)
	}
	session += "}"
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":%s}}`, eventID, session))
}

func TestVerify_ValidSignature(t *testing.T) {
	v := payment.NewWebhookVerifier(testSecret)
	payload := checkoutCompletedPayload("evt_1", "cs_1", "paid")

	n, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n.EventID != "evt_1" || n.SessionID != "cs_1" {
		t.Errorf("unexpected notification %+v", n)
	}
	if n.Status != domain.PaymentStatusPaid {
		t.Errorf("expected paid status, got %v", n.Status)
	}
	if n.PaymentIntentID != "pi_1" || n.AmountTotal != 6000 || n.Currency != "eur" {
		t.Errorf("expected enrichment fields, got %+v", n)
	}
}

func TestVerify_InvalidSignature(t *testing.T) {
	v := payment.NewWebhookVerifier(testSecret)
	payload := checkoutCompletedPayload("evt_1", "cs_1", "paid")

	_, err := v.Verify(payload, signPayload("whsec_wrong", payload, time.Now()))
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	v := payment.NewWebhookVerifier(testSecret)
	payload := checkoutCompletedPayload("evt_1", "cs_1", "paid")
	header := signPayload(testSecret, payload, time.Now())

	tampered := checkoutCompletedPayload("evt_1", "cs_2", "paid")
	if _, err := v.Verify(tampered, header); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerify_StatusMapping(t *testing.T) {
	v := payment.NewWebhookVerifier(testSecret)

	cases := []struct {
		paymentStatus string
		want          domain.PaymentStatus
	}{
		{"paid", domain.PaymentStatusPaid},
		{"no_payment_required", domain.PaymentStatusPaid},
		{"unpaid", domain.PaymentStatusNotPaid},
		{"", domain.PaymentStatusUnknown},
	}
	for _, tc := range cases {
		payload := checkoutCompletedPayload("evt_1", "cs_1", tc.paymentStatus)
		n, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
		if err != nil {
			t.Fatalf("payment_status=%q: %v", tc.paymentStatus, err)
		}
		if n.Status != tc.want {
			t.Errorf("payment_status=%q: expected %v, got %v", tc.paymentStatus, tc.want, n.Status)
		}
	}
}

func TestVerify_OtherEventTypePassedThrough(t *testing.T) {
	v := payment.NewWebhookVerifier(testSecret)
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`)

	n, err := v.Verify(payload, signPayload(testSecret, payload, time.Now()))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n.Type != "payment_intent.created" {
		t.Errorf("expected type preserved, got %q", n.Type)
	}
	if n.SessionID != "" {
		t.Errorf("non-checkout events must not carry a session id")
	}
}
