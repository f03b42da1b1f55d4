package integration_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/atelierzen/booking-backend/internal/adapters/mongo"
	"github.com/atelierzen/booking-backend/internal/adapters/postgres"
	"github.com/atelierzen/booking-backend/internal/adapters/rabbit"
	redisadapter "github.com/atelierzen/booking-backend/internal/adapters/redis"
	"github.com/atelierzen/booking-backend/internal/auth"
	"github.com/atelierzen/booking-backend/internal/config"
	"github.com/atelierzen/booking-backend/internal/counters"
	"github.com/atelierzen/booking-backend/internal/domain"
	httphandler "github.com/atelierzen/booking-backend/internal/http"
	"github.com/atelierzen/booking-backend/internal/observability"
	"github.com/atelierzen/booking-backend/internal/outbox"
	"github.com/atelierzen/booking-backend/internal/payment"
	"github.com/atelierzen/booking-backend/internal/rateLimit"
	"github.com/atelierzen/booking-backend/internal/reconciler"
)

const (
	webhookSecret = "whsec_integration"
	adminEmail    = "admin@example.com"
	adminPassword = "integration-password"
	baseURL       = "http://localhost:4545"
)

const schema = `
	CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('PENDING', 'PAID')),
		session_id TEXT UNIQUE,
		payment_intent_id TEXT,
		amount_total BIGINT,
		currency TEXT,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payment_events (
		id UUID PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL,
		session_id TEXT NOT NULL UNIQUE,
		booking_id UUID REFERENCES bookings (id),
		processed_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT
	);
`

// signPayload builds a Stripe v1 signature header; the SDK verifies but does
// not sign, so the test computes the HMAC itself.
func signPayload(payload []byte) string {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func checkoutCompletedPayload(eventID, sessionID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":"checkout.session.completed","data":{"object":{"id":%q,"object":"checkout.session","payment_intent":"pi_1","amount_total":6000,"currency":"eur","payment_status":"paid"}}}`,
		eventID, sessionID))
}

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })
	return container
}

func endpoint(t *testing.T, ctx context.Context, container testcontainers.Container, port string) string {
	t.Helper()
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := container.MappedPort(ctx, nat.Port(port))
	if err != nil {
		t.Fatal(err)
	}
	return host + ":" + mapped.Port()
}

func TestIntegration_WebhookReconciliation(t *testing.T) {
	ctx := context.Background()

	pgContainer := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "booking",
			"POSTGRES_PASSWORD": "booking",
			"POSTGRES_DB":       "booking",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	})
	mongoContainer := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp"),
	})
	redisContainer := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "redis:7",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
	})
	rabbitContainer := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "rabbitmq:3.13-management",
		ExposedPorts: []string{"5672/tcp"},
		WaitingFor:   wait.ForListeningPort("5672/tcp"),
	})

	cfg := &config.Config{
		Addr:                ":4545",
		PostgresDSN:         "postgresql://booking:booking@" + endpoint(t, ctx, pgContainer, "5432") + "/booking?sslmode=disable",
		MongoURI:            "mongodb://" + endpoint(t, ctx, mongoContainer, "27017"),
		RedisAddr:           endpoint(t, ctx, redisContainer, "6379"),
		RabbitURL:           "amqp://guest:guest@" + endpoint(t, ctx, rabbitContainer, "5672") + "/",
		StripeWebhookSecret: webhookSecret,
		AdminEmail:          adminEmail,
		AdminPassword:       adminPassword,
		SessionTTL:          time.Hour,
	}

	var pool *pgxpool.Pool
	var err error
	for i := 0; i < 10; i++ {
		pool, err = pgxpool.New(ctx, cfg.PostgresDSN)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				break
			}
			pool.Close()
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatal(err)
	}
	repo := postgres.NewRepository(pool)

	logger := observability.NewLogger()

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	audit := mongoadapter.NewAuditLogger(mongoClient.Database("booking"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	cache := redisadapter.NewCache(redisClient)
	sessions := redisadapter.NewSessions(redisClient, cfg.SessionTTL)
	rl := rateLimit.NewRateLimiter(cache)
	authSvc := auth.NewService(sessions, cfg.AdminEmail, cfg.AdminPassword)

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		t.Fatal(err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		t.Fatal(err)
	}
	consumer, err := rabbit.NewConsumer(rabbitConn, "booking-paid-it", "booking.paid")
	if err != nil {
		t.Fatal(err)
	}
	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		t.Fatal(err)
	}

	sink := counters.NewMemory(nil)
	rec := reconciler.New(repo, sink, audit, logger)
	verifier := payment.NewWebhookVerifier(cfg.StripeWebhookSecret)

	handlers := httphandler.NewHandlers(cfg, repo, verifier, nil, rec, sink, authSvc, logger)
	router := httphandler.SetupRouter(handlers, logger, rl, authSvc)

	srv := &http.Server{Addr: cfg.Addr, Handler: router}
	go srv.ListenAndServe()
	defer srv.Shutdown(ctx)

	outboxCtx, cancelOutbox := context.WithCancel(ctx)
	defer cancelOutbox()
	go outbox.NewPublisher(repo, rabbitPub, logger).Run(outboxCtx)

	// Wait for the server to come up.
	for i := 0; i < 20; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	// Admin endpoints require a session.
	resp, err := http.Get(baseURL + "/reservations")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", resp.StatusCode)
	}

	loginBody, _ := json.Marshal(map[string]string{"email": adminEmail, "password": adminPassword})
	resp, err = http.Post(baseURL+"/auth/login", "application/json", bytes.NewReader(loginBody))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed with status %d", resp.StatusCode)
	}
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("expected sid cookie on login")
	}

	// Pending booking awaiting payment confirmation.
	booking, err := domain.NewPendingBooking("John", "Doe", "john@doe.com", "2026-01-30", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.CreateBooking(ctx, booking); err != nil {
		t.Fatal(err)
	}
	if err := repo.AttachSessionID(ctx, booking.ID, "cs_int_1"); err != nil {
		t.Fatal(err)
	}

	postWebhook := func(payload []byte, sign bool) *http.Response {
		req, _ := http.NewRequest("POST", baseURL+"/webhook", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		if sign {
			req.Header.Set("Stripe-Signature", signPayload(payload))
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp
	}

	// Unsigned delivery is rejected before any processing.
	if resp := postWebhook(checkoutCompletedPayload("evt_0", "cs_int_1"), false); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsigned webhook, got %d", resp.StatusCode)
	}

	// First signed delivery marks the booking paid.
	if resp := postWebhook(checkoutCompletedPayload("evt_1", "cs_int_1"), true); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	bookings, err := repo.ListBookings(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(bookings) != 1 || bookings[0].Status != domain.BookingPaid {
		t.Fatalf("expected paid booking, got %+v", bookings)
	}
	events, err := repo.ListPaymentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(events))
	}

	// Redelivery with a fresh event id is acknowledged without side effects.
	if resp := postWebhook(checkoutCompletedPayload("evt_2", "cs_int_1"), true); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", resp.StatusCode)
	}
	events, err = repo.ListPaymentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("redelivery must not add ledger rows, got %d", len(events))
	}

	// Orphan session is acknowledged and leaves an audit ledger row.
	if resp := postWebhook(checkoutCompletedPayload("evt_3", "cs_orphan"), true); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for orphan session, got %d", resp.StatusCode)
	}
	events, err = repo.ListPaymentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("expected orphan ledger row, got %d rows", len(events))
	}

	// Redelivery of the orphan session must keep being acknowledged.
	if resp := postWebhook(checkoutCompletedPayload("evt_4", "cs_orphan"), true); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on orphan redelivery, got %d", resp.StatusCode)
	}
	events, err = repo.ListPaymentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("orphan redelivery must not add ledger rows, got %d", len(events))
	}

	// The outbox publisher delivers booking.paid to the broker.
	select {
	case d := <-deliveries:
		if d.MessageId != "cs_int_1" {
			t.Errorf("expected message id cs_int_1, got %q", d.MessageId)
		}
		var paid struct {
			BookingID string `json:"booking_id"`
		}
		if err := json.Unmarshal(d.Body, &paid); err != nil {
			t.Fatal(err)
		}
		if paid.BookingID != booking.ID.String() {
			t.Errorf("expected booking id %s, got %s", booking.ID, paid.BookingID)
		}
		d.Ack(false)
	case <-time.After(30 * time.Second):
		t.Fatal("timed out waiting for booking.paid event")
	}

	// Admin counters reflect the deliveries above.
	req, _ := http.NewRequest("GET", baseURL+"/admin/metrics", nil)
	req.AddCookie(sessionCookie)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from admin metrics, got %d", resp.StatusCode)
	}
	var metrics struct {
		Webhook map[string]int64 `json:"webhook"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&metrics); err != nil {
		t.Fatal(err)
	}
	if metrics.Webhook[counters.Received] != 4 {
		t.Errorf("expected 4 received, got %d", metrics.Webhook[counters.Received])
	}
	if metrics.Webhook[counters.Duplicate] != 2 {
		t.Errorf("expected 2 duplicates, got %d", metrics.Webhook[counters.Duplicate])
	}
}
