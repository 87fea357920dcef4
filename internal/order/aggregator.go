package order

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

type Store interface {
	CreateOrder(ctx context.Context, order domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SetOrderPaymentRef(ctx context.Context, id uuid.UUID, ref string) error
	MarkOrderFailed(ctx context.Context, id uuid.UUID) error
	// FinalizeOrder flips PENDING -> PAID and enqueues the paid
	// notification atomically; it reports whether this call did the flip.
	FinalizeOrder(ctx context.Context, id uuid.UUID, notice []byte) (bool, error)
}

// Aggregator groups reserved tickets into a single order with an
// immutable customer snapshot.
type Aggregator struct {
	store Store
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// Create persists a new pending order. The snapshot is validated here so
// an order row can never exist with incomplete contact data.
func (a *Aggregator) Create(ctx context.Context, chatID int64, customer domain.CustomerSnapshot, lines []domain.OrderLine) (*domain.Order, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	if customer.Name == "" || customer.Phone == "" || customer.Email == "" {
		return nil, domain.ErrInvalidCustomer
	}
	for _, line := range lines {
		if line.Quantity <= 0 || line.Quantity != len(line.ReservationIDs) {
			return nil, errors.Wrapf(domain.ErrEmptyOrder, "line %s quantity mismatch", line.EventID)
		}
	}

	order := domain.NewOrder(chatID, customer, lines)
	if err := a.store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (a *Aggregator) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return a.store.GetOrder(ctx, id)
}

func (a *Aggregator) AttachPayment(ctx context.Context, id uuid.UUID, ref string) error {
	return a.store.SetOrderPaymentRef(ctx, id, ref)
}

func (a *Aggregator) Fail(ctx context.Context, id uuid.UUID) error {
	return a.store.MarkOrderFailed(ctx, id)
}

func (a *Aggregator) Finalize(ctx context.Context, id uuid.UUID, notice []byte) (bool, error) {
	return a.store.FinalizeOrder(ctx, id, notice)
}
