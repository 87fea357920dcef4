package domain

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID
	Title       string
	Description string
	Price       float64
	StartsAt    time.Time
	Location    string
	ImageURL    string
	Capacity    int
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationPaid      ReservationStatus = "PAID"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationUsed      ReservationStatus = "USED"
)

// Reservation is a single ticket unit held against an event. Status moves
// strictly forward: PENDING -> {PAID, CANCELLED}, PAID -> USED.
type Reservation struct {
	ID           uuid.UUID
	EventID      uuid.UUID
	ChatID       int64
	TicketNumber string
	Status       ReservationStatus
	PaymentRef   string
	CreatedAt    time.Time
	UsedAt       *time.Time
}

type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderFailed  OrderStatus = "FAILED"
)

// CustomerSnapshot is captured at checkout time and never updated
// afterwards, independent of any later profile change.
type CustomerSnapshot struct {
	Name  string
	Phone string
	Email string
}

type Order struct {
	ID         uuid.UUID
	ChatID     int64
	Customer   CustomerSnapshot
	Lines      []OrderLine
	Total      float64
	PaymentRef string
	Status     OrderStatus
	CreatedAt  time.Time
}

type OrderLine struct {
	EventID        uuid.UUID
	Title          string
	UnitPrice      float64
	Quantity       int
	ReservationIDs []uuid.UUID
}

// CartLine lives in the session only. The reservations are the source of
// truth; Quantity must equal len(ReservationIDs) after every mutation.
type CartLine struct {
	EventID        uuid.UUID
	Title          string
	UnitPrice      float64
	Quantity       int
	ReservationIDs []uuid.UUID
}

type Session struct {
	ChatID        int64
	State         CheckoutState
	Cart          []CartLine
	Name          string
	Phone         string
	Email         string
	OrderID       uuid.UUID
	InvoiceID     string
	PayURL        string
	Reservations  []uuid.UUID
	HoldExpiresAt time.Time
	UpdatedAt     time.Time
}

func (s *Session) CartQuantity() int {
	total := 0
	for _, line := range s.Cart {
		total += line.Quantity
	}
	return total
}

func (s *Session) CartTotal() float64 {
	total := 0.0
	for _, line := range s.Cart {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return total
}
