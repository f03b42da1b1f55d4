package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/atelierzen/booking-backend/internal/auth"
	"github.com/atelierzen/booking-backend/internal/config"
	"github.com/atelierzen/booking-backend/internal/counters"
	"github.com/atelierzen/booking-backend/internal/domain"
	"github.com/atelierzen/booking-backend/internal/observability"
	"github.com/atelierzen/booking-backend/internal/payment"
	"github.com/atelierzen/booking-backend/internal/reconciler"
	"github.com/atelierzen/booking-backend/internal/store"
)

const (
	sessionCookie = "sid"

	// Stripe checkout.session payloads are small; anything bigger is junk.
	maxWebhookBody = 1 << 20

	defaultPaymentsLimit = 100
	maxPaymentsLimit     = 500
)

type Handlers struct {
	cfg        *config.Config
	store      store.Store
	verifier   payment.Verifier
	checkout   payment.CheckoutClient
	reconciler *reconciler.Reconciler
	counters   counters.Sink
	auth       *auth.Service
	logger     observability.Logger
}

func NewHandlers(
	cfg *config.Config,
	st store.Store,
	verifier payment.Verifier,
	checkout payment.CheckoutClient,
	rec *reconciler.Reconciler,
	sink counters.Sink,
	authSvc *auth.Service,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		cfg:        cfg,
		store:      st,
		verifier:   verifier,
		checkout:   checkout,
		reconciler: rec,
		counters:   sink,
		auth:       authSvc,
		logger:     logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Webhook receives provider payment notifications. The raw body is kept
// byte-exact for signature verification; only this handler maps outcomes to
// HTTP status codes.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r.Context(), h.logger)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		log.Warn("webhook rejected: missing signature header")
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	n, err := h.verifier.Verify(body, sig)
	if err != nil {
		log.WithError(err).Warn("webhook rejected: invalid signature")
		http.Error(w, "invalid webhook signature", http.StatusBadRequest)
		return
	}

	h.counters.Inc(counters.Received)

	if n.Type != payment.EventTypeCheckoutCompleted {
		h.counters.Inc(counters.Ignored)
		writeJSON(w, http.StatusOK, map[string]bool{"received": true})
		return
	}

	if _, err := h.reconciler.Process(r.Context(), n); err != nil {
		// An authentic payload without a session id can never be resolved;
		// a 400 stops the provider from retrying it forever.
		if errors.Is(err, domain.ErrMissingSessionID) {
			log.WithField("event_id", n.EventID).Warn("webhook rejected: no session id in payload")
			http.Error(w, "missing payment session id", http.StatusBadRequest)
			return
		}
		// 500 tells the provider to retry; the transaction left no
		// partial state, so the retry is safe.
		log.WithError(err).WithField("event_id", n.EventID).Error("webhook processing failed")
		http.Error(w, "webhook processing failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handlers) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Date      string `json:"date"`
		Time      string `json:"time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	booking, err := domain.NewPendingBooking(req.FirstName, req.LastName, req.Email, req.Date, req.Time)
	if err != nil {
		http.Error(w, "missing booking fields", http.StatusBadRequest)
		return
	}

	if err := h.store.CreateBooking(r.Context(), booking); err != nil {
		h.logger.WithError(err).Error("failed to create booking")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	url, sessionID, err := h.checkout.CreateCheckoutSession(r.Context(), booking)
	if err != nil {
		h.logger.WithError(err).Error("failed to create checkout session")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.store.AttachSessionID(r.Context(), booking.ID, sessionID); err != nil {
		h.logger.WithError(err).Error("failed to attach session id")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.logger.WithField("booking_id", booking.ID).WithField("session_id", sessionID).Info("pending booking stored")

	writeJSON(w, http.StatusOK, map[string]string{
		"url":       url,
		"sessionId": sessionID,
	})
}

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.store.ListBookings(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("failed to list reservations")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(bookings))
	for _, b := range bookings {
		items = append(items, map[string]interface{}{
			"id":        b.ID,
			"firstName": b.FirstName,
			"lastName":  b.LastName,
			"email":     b.Email,
			"date":      b.Date,
			"time":      b.Time,
			"status":    b.Status,
			"sessionId": b.SessionID,
			"createdAt": b.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"meta":  map[string]int{"count": len(items)},
	})
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	limit := defaultPaymentsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPaymentsLimit {
		limit = maxPaymentsLimit
	}

	events, err := h.store.ListPaymentEvents(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("failed to list payment events")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	items := make([]map[string]interface{}, 0, len(events))
	for _, ev := range events {
		items = append(items, map[string]interface{}{
			"id":          ev.ID,
			"eventId":     ev.EventID,
			"type":        ev.Type,
			"sessionId":   ev.SessionID,
			"bookingId":   ev.BookingID,
			"processedAt": ev.ProcessedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"meta":  map[string]int{"count": len(items)},
	})
}

func (h *Handlers) AdminMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"webhook": h.counters.Snapshot(),
	})
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password required"})
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("login failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user": map[string]string{"email": req.Email, "role": "admin"},
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		_ = h.auth.Logout(r.Context(), cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
