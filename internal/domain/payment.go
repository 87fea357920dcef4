package domain

import "github.com/google/uuid"

type PaymentStatus string

const (
	PaymentPaid    PaymentStatus = "paid"
	PaymentNotPaid PaymentStatus = "not_paid"
)

// Invoice is the gateway's representation of an amount owed. The system
// creates and polls invoices; it never owns their lifecycle.
type Invoice struct {
	ID     string
	PayURL string
}

type InvoiceRequest struct {
	OrderID     uuid.UUID
	Amount      float64
	ServiceName string
	Details     string
	Customer    CustomerSnapshot
}
