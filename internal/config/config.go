package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverJSON     = "json"
)

type Config struct {
	Addr        string
	AppURL      string
	PostgresDSN string
	MongoURI    string
	RedisAddr   string
	RabbitURL   string

	StripeSecretKey     string
	StripeWebhookSecret string

	// StorageDriver selects the booking/ledger store: "postgres" (default)
	// or "json" (dev only, see adapters/jsonfile).
	StorageDriver string
	JSONDataFile  string

	AdminEmail    string
	AdminPassword string
	SessionTTL    time.Duration

	OTLPEndpoint string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	sessionTTL, _ := time.ParseDuration(os.Getenv("SESSION_TTL"))
	if sessionTTL == 0 {
		sessionTTL = 8 * time.Hour
	}

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":4242"
	}

	driver := os.Getenv("STORAGE_DRIVER")
	if driver == "" {
		driver = DriverPostgres
	}

	dataFile := os.Getenv("JSON_DATA_FILE")
	if dataFile == "" {
		dataFile = "data/bookings.json"
	}

	return &Config{
		Addr:                addr,
		AppURL:              os.Getenv("APP_URL"),
		PostgresDSN:         os.Getenv("PG_DSN"),
		MongoURI:            os.Getenv("MONGO_URI"),
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RabbitURL:           os.Getenv("RABBIT_URL"),
		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StorageDriver:       driver,
		JSONDataFile:        dataFile,
		AdminEmail:          os.Getenv("ADMIN_EMAIL"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		SessionTTL:          sessionTTL,
		OTLPEndpoint:        os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}
