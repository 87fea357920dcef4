package domain

import "errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")

	ErrEventNotFound    = errors.New("event not found")
	ErrCapacityExceeded = errors.New("event capacity exceeded")
	ErrInvalidState     = errors.New("invalid state transition")

	ErrEmptyOrder      = errors.New("order has no lines")
	ErrInvalidCustomer = errors.New("customer contact data incomplete")

	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrInvalidRequest     = errors.New("payment gateway rejected request")

	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNoActivePayment    = errors.New("no payment awaiting confirmation")

	ErrInvalidName  = errors.New("invalid name")
	ErrInvalidPhone = errors.New("invalid phone")
	ErrInvalidEmail = errors.New("invalid email")
)
