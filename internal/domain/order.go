package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewOrder(chatID int64, customer CustomerSnapshot, lines []OrderLine) Order {
	total := 0.0
	for _, line := range lines {
		total += line.UnitPrice * float64(line.Quantity)
	}
	return Order{
		ID:        uuid.New(),
		ChatID:    chatID,
		Customer:  customer,
		Lines:     lines,
		Total:     total,
		Status:    OrderPending,
		CreatedAt: time.Now().UTC(),
	}
}

// OrderPaidNotice is the payload of the order.paid outbox event consumed
// by the notifier.
type OrderPaidNotice struct {
	OrderID       uuid.UUID    `json:"order_id"`
	ChatID        int64        `json:"chat_id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	Phone         string       `json:"phone"`
	Total         float64      `json:"total"`
	Lines         []NoticeLine `json:"lines"`
	TicketNumbers []string     `json:"ticket_numbers"`
}

type NoticeLine struct {
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}
