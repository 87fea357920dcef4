package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

func NewReservation(eventID uuid.UUID, chatID int64) Reservation {
	return Reservation{
		ID:           uuid.New(),
		EventID:      eventID,
		ChatID:       chatID,
		TicketNumber: NewTicketNumber(),
		Status:       ReservationPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewTicketNumber generates the externally visible ticket number. The
// timestamp component keeps numbers unique in practice; the database
// unique constraint is the real guarantee.
func NewTicketNumber() string {
	return fmt.Sprintf("FR-%d-%03d", time.Now().UnixMilli(), rand.Intn(1000))
}

// CanTransition reports whether a reservation status change is legal.
// Only PENDING -> {PAID, CANCELLED} and PAID -> USED are allowed.
func CanTransition(from, to ReservationStatus) bool {
	switch from {
	case ReservationPending:
		return to == ReservationPaid || to == ReservationCancelled
	case ReservationPaid:
		return to == ReservationUsed
	}
	return false
}
