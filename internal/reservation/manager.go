package reservation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// Store is the persistence surface the manager needs. The crdb
// repository implements it; tests use an in-memory fake.
type Store interface {
	// InsertPending creates a PENDING reservation iff the event exists
	// and has free capacity, as one conditional write.
	InsertPending(ctx context.Context, res domain.Reservation) error
	// InsertReinstated writes a capacity-exempt replacement reservation.
	InsertReinstated(ctx context.Context, res domain.Reservation) error
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	// TransitionReservation returns false when the reservation was not
	// in the expected source status.
	TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error)
	AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (bool, error)
}

// Manager allocates and releases single reservation units and guards the
// pending -> {paid, cancelled} -> used lifecycle.
type Manager struct {
	store  Store
	logger observability.Logger
}

func NewManager(store Store, logger observability.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

func (m *Manager) Reserve(ctx context.Context, eventID uuid.UUID, chatID int64) (*domain.Reservation, error) {
	res := domain.NewReservation(eventID, chatID)
	if err := m.store.InsertPending(ctx, res); err != nil {
		switch {
		case errors.Is(err, domain.ErrCapacityExceeded):
			observability.ReservationsTotal.WithLabelValues("capacity_exceeded").Inc()
		case errors.Is(err, domain.ErrEventNotFound):
			observability.ReservationsTotal.WithLabelValues("event_not_found").Inc()
		default:
			observability.ReservationsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	observability.ReservationsTotal.WithLabelValues("reserved").Inc()
	return &res, nil
}

// Release cancels a pending reservation. Releasing an already cancelled
// or already paid reservation is a no-op: a paid ticket is never
// silently destroyed. Releasing a used ticket is an error.
func (m *Manager) Release(ctx context.Context, id uuid.UUID) error {
	moved, err := m.store.TransitionReservation(ctx, id, domain.ReservationPending, domain.ReservationCancelled)
	if err != nil {
		return err
	}
	if moved {
		observability.ReservationsTotal.WithLabelValues("released").Inc()
		return nil
	}

	res, err := m.store.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	switch res.Status {
	case domain.ReservationPaid, domain.ReservationCancelled:
		return nil
	case domain.ReservationUsed:
		return errors.Wrap(domain.ErrInvalidState, "cannot release a used ticket")
	}
	return errors.Wrapf(domain.ErrInvalidState, "release from %s", res.Status)
}

func (m *Manager) AttachPayment(ctx context.Context, id uuid.UUID, paymentRef string) error {
	ok, err := m.store.AttachPaymentRef(ctx, id, paymentRef)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(domain.ErrInvalidState, "payment ref requires a pending reservation")
	}
	return nil
}

// MarkPaid transitions pending -> paid. Calling it again on a paid
// reservation is a no-op, so gateway confirmation can be retried safely.
func (m *Manager) MarkPaid(ctx context.Context, id uuid.UUID) error {
	moved, err := m.store.TransitionReservation(ctx, id, domain.ReservationPending, domain.ReservationPaid)
	if err != nil {
		return err
	}
	if moved {
		return nil
	}

	res, err := m.store.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if res.Status == domain.ReservationPaid {
		return nil
	}
	return errors.Wrapf(domain.ErrInvalidState, "mark paid from %s", res.Status)
}

// MarkUsed redeems a paid ticket at the door.
func (m *Manager) MarkUsed(ctx context.Context, id uuid.UUID) error {
	moved, err := m.store.TransitionReservation(ctx, id, domain.ReservationPaid, domain.ReservationUsed)
	if err != nil {
		return err
	}
	if !moved {
		return errors.Wrap(domain.ErrInvalidState, "only a paid ticket can be used")
	}
	return nil
}

// Reinstate replaces a reservation that was cancelled locally while the
// gateway confirmed its payment. The replacement is created directly in
// PAID status with a fresh ticket number and is exempt from the capacity
// guard: a confirmed payment always wins over a local expiry decision.
func (m *Manager) Reinstate(ctx context.Context, cancelled *domain.Reservation) (*domain.Reservation, error) {
	replacement := domain.Reservation{
		ID:           uuid.New(),
		EventID:      cancelled.EventID,
		ChatID:       cancelled.ChatID,
		TicketNumber: domain.NewTicketNumber(),
		Status:       domain.ReservationPaid,
		PaymentRef:   cancelled.PaymentRef,
		CreatedAt:    time.Now().UTC(),
	}
	if err := m.store.InsertReinstated(ctx, replacement); err != nil {
		return nil, err
	}
	m.logger.WithField("reservation_id", cancelled.ID).
		WithField("replacement_id", replacement.ID).
		Warn("reinstated reservation after confirmed payment")
	return &replacement, nil
}

// Get exposes the stored reservation for read paths.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return m.store.GetReservation(ctx, id)
}
