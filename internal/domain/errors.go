package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrSerializationFailure = errors.New("serialization failure")
	ErrInvalidInput         = errors.New("invalid input")

	// ErrDuplicateSession means the ledger already holds a row for this
	// payment session (or provider event id); the notification was
	// processed before.
	ErrDuplicateSession = errors.New("payment session already registered")

	// ErrMissingSessionID means a notification carried no session id, so
	// the idempotence guarantee cannot be provided for it.
	ErrMissingSessionID = errors.New("payment session id missing")

	ErrInvalidSignature = errors.New("invalid webhook signature")
)
