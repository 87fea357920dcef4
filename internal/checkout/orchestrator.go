package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
	"github.com/frantsuz-club/ticket-bot/internal/order"
	"github.com/frantsuz-club/ticket-bot/internal/reservation"
	"github.com/frantsuz-club/ticket-bot/internal/session"
)

// Gateway is the payment provider contract: single-attempt calls, no
// internal retry.
type Gateway interface {
	CreateInvoice(ctx context.Context, req domain.InvoiceRequest) (domain.Invoice, error)
	CheckStatus(ctx context.Context, invoiceID string) (domain.PaymentStatus, error)
}

// Catalog resolves sellable events.
type Catalog interface {
	GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error)
}

// Audit receives best-effort trail records of checkout transitions.
type Audit interface {
	ReservationCreated(ctx context.Context, res domain.Reservation)
	ReservationReleased(ctx context.Context, res domain.Reservation, reason string)
	OrderCreated(ctx context.Context, ord domain.Order)
	OrderPaid(ctx context.Context, ord domain.Order)
}

// NopAudit discards the trail; used in tests.
type NopAudit struct{}

func (NopAudit) ReservationCreated(context.Context, domain.Reservation)          {}
func (NopAudit) ReservationReleased(context.Context, domain.Reservation, string) {}
func (NopAudit) OrderCreated(context.Context, domain.Order)                      {}
func (NopAudit) OrderPaid(context.Context, domain.Order)                         {}

// Orchestrator drives a session from cart building through payment
// confirmation, including every compensating action. All entry points
// serialize on a per-chat mutex: a button double-tap becomes two
// sequential operations instead of an interleaved pair.
type Orchestrator struct {
	sessions     session.Store
	reservations *reservation.Manager
	orders       *order.Aggregator
	gateway      Gateway
	catalog      Catalog
	audit        Audit
	logger       observability.Logger

	holdTTL time.Duration
	now     func() time.Time
	locks   chatLocks
}

func NewOrchestrator(
	sessions session.Store,
	reservations *reservation.Manager,
	orders *order.Aggregator,
	gateway Gateway,
	catalog Catalog,
	audit Audit,
	holdTTL time.Duration,
	logger observability.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions:     sessions,
		reservations: reservations,
		orders:       orders,
		gateway:      gateway,
		catalog:      catalog,
		audit:        audit,
		logger:       logger,
		holdTTL:      holdTTL,
		now:          time.Now,
		locks:        newChatLocks(),
	}
}

func (o *Orchestrator) session(ctx context.Context, chatID int64) (*domain.Session, error) {
	sess, err := o.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &domain.Session{ChatID: chatID, State: domain.StateCartBuilding}
	}
	return sess, nil
}

// releaseAll cancels every given reservation, logging failures instead
// of stopping: a compensating sweep must make as much progress as it
// can.
func (o *Orchestrator) releaseAll(ctx context.Context, ids []uuid.UUID, reason string) {
	for _, id := range ids {
		res, err := o.reservations.Get(ctx, id)
		if err != nil {
			o.logger.WithError(err).WithField("reservation_id", id).Error("release lookup failed")
			continue
		}
		if err := o.reservations.Release(ctx, id); err != nil {
			o.logger.WithError(err).WithField("reservation_id", id).Error("release failed")
			continue
		}
		o.audit.ReservationReleased(ctx, *res, reason)
	}
}
