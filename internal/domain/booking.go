package domain

import (
	"time"

	"github.com/google/uuid"
)

// NewPendingBooking builds a pending booking for a checkout flow that has
// not yet been linked to a payment session.
func NewPendingBooking(firstName, lastName, email, date, timeSlot string) (Booking, error) {
	if firstName == "" || lastName == "" || email == "" || date == "" || timeSlot == "" {
		return Booking{}, ErrInvalidInput
	}
	return Booking{
		ID:        uuid.New(),
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Date:      date,
		Time:      timeSlot,
		Status:    BookingPending,
		CreatedAt: time.Now().UTC(),
	}, nil
}
