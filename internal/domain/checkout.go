package domain

// CheckoutState is the per-session step of a checkout attempt. The
// contact-capture phase is split into one state per field so that every
// step is matched explicitly; an unknown state is a bug, not a silent
// no-op.
type CheckoutState int

const (
	StateCartBuilding CheckoutState = iota
	StateCollectingName
	StateCollectingPhone
	StateCollectingEmail
	StateAwaitingPayment
	StateFulfilled
	StateAborted
)

func (s CheckoutState) String() string {
	switch s {
	case StateCartBuilding:
		return "cart_building"
	case StateCollectingName:
		return "collecting_name"
	case StateCollectingPhone:
		return "collecting_phone"
	case StateCollectingEmail:
		return "collecting_email"
	case StateAwaitingPayment:
		return "awaiting_payment"
	case StateFulfilled:
		return "fulfilled"
	case StateAborted:
		return "aborted"
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (s CheckoutState) Terminal() bool {
	return s == StateFulfilled || s == StateAborted
}

// Collecting reports whether the session is waiting for a contact field.
func (s CheckoutState) Collecting() bool {
	switch s {
	case StateCollectingName, StateCollectingPhone, StateCollectingEmail:
		return true
	}
	return false
}
