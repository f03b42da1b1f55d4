// Package auth implements the session-based admin login consumed by the
// listing and metrics endpoints.
package auth

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	redisadapter "github.com/atelierzen/booking-backend/internal/adapters/redis"
	"github.com/atelierzen/booking-backend/internal/domain"
)

type Service struct {
	sessions      *redisadapter.Sessions
	adminEmail    string
	adminPassword string
}

func NewService(sessions *redisadapter.Sessions, adminEmail, adminPassword string) *Service {
	return &Service{
		sessions:      sessions,
		adminEmail:    adminEmail,
		adminPassword: adminPassword,
	}
}

// Login checks the env-seeded admin credentials and opens a session.
// ADMIN_PASSWORD may be a bcrypt hash; a plain value is compared directly
// (dev setups only).
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", domain.ErrInvalidInput
	}
	if !strings.EqualFold(email, s.adminEmail) {
		return "", domain.ErrNotFound
	}

	if strings.HasPrefix(s.adminPassword, "$2") {
		if err := bcrypt.CompareHashAndPassword([]byte(s.adminPassword), []byte(password)); err != nil {
			return "", domain.ErrNotFound
		}
	} else if password != s.adminPassword {
		return "", domain.ErrNotFound
	}

	return s.sessions.Create(ctx, s.adminEmail)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to the admin email; "" means the
// session is unknown or expired.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	return s.sessions.Get(ctx, token)
}
