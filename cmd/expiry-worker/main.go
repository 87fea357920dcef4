package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/frantsuz-club/ticket-bot/internal/adapters/crdb"
	mongoadapter "github.com/frantsuz-club/ticket-bot/internal/adapters/mongo"
	"github.com/frantsuz-club/ticket-bot/internal/adapters/paykeeper"
	"github.com/frantsuz-club/ticket-bot/internal/checkout"
	"github.com/frantsuz-club/ticket-bot/internal/config"
	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
	"github.com/frantsuz-club/ticket-bot/internal/reservation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg.OTLPEndpoint, "expiry-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	var audit checkout.Audit = checkout.NopAudit{}
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		audit = mongoadapter.NewAuditTrail(mongoClient.Database("frantsuz"), logger)
	}

	gateway := paykeeper.NewClient(cfg.PayKeeperServer, cfg.PayKeeperUser, cfg.PayKeeperPassword, logger)

	worker := NewExpiryWorker(repo, reservation.NewManager(repo, logger), gateway, audit, cfg.HoldTTL, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go worker.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry worker")
}

// ExpiryWorker sweeps pending reservations whose hold window lapsed.
// Each payment ref is re-checked against the gateway first: a payment
// that completed after the user walked away is finalized, not released.
type ExpiryWorker struct {
	repo         *crdb.Repository
	reservations *reservation.Manager
	gateway      checkout.Gateway
	audit        checkout.Audit
	holdTTL      time.Duration
	logger       observability.Logger
}

func NewExpiryWorker(repo *crdb.Repository, reservations *reservation.Manager, gateway checkout.Gateway, audit checkout.Audit, holdTTL time.Duration, logger observability.Logger) *ExpiryWorker {
	return &ExpiryWorker{
		repo:         repo,
		reservations: reservations,
		gateway:      gateway,
		audit:        audit,
		holdTTL:      holdTTL,
		logger:       logger,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			w.sweep(ctx, now.UTC())
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context, now time.Time) {
	expired, err := w.repo.GetExpiredPending(ctx, now.Add(-w.holdTTL))
	if err != nil {
		w.logger.WithError(err).Error("failed to get expired reservations")
		return
	}

	// Group by payment ref so each invoice is checked once per sweep.
	byRef := map[string][]domain.Reservation{}
	for _, res := range expired {
		byRef[res.PaymentRef] = append(byRef[res.PaymentRef], res)
	}

	for ref, group := range byRef {
		if ref == "" {
			// Cart holds that never reached an invoice; nothing to reconcile.
			w.releaseAll(ctx, group)
			continue
		}

		status, err := w.gateway.CheckStatus(ctx, ref)
		if err != nil {
			// Leave the group for the next sweep rather than risk
			// releasing a paid seat.
			w.logger.WithError(err).WithField("payment_ref", ref).Warn("status check failed, skipping group")
			continue
		}
		if status == domain.PaymentPaid {
			if err := w.finalizePaid(ctx, ref, group); err != nil {
				w.logger.WithError(err).WithField("payment_ref", ref).Error("failed to finalize late payment")
			}
			continue
		}
		w.releaseAll(ctx, group)
	}
}

func (w *ExpiryWorker) releaseAll(ctx context.Context, group []domain.Reservation) {
	for _, res := range group {
		if err := w.releaseWithRetry(ctx, res.ID); err != nil {
			w.logger.WithError(err).WithField("reservation_id", res.ID).Error("failed to release expired reservation")
			continue
		}
		observability.ExpiredReservations.Inc()
		w.audit.ReservationReleased(ctx, res, "hold_expired")
	}
}

func (w *ExpiryWorker) releaseWithRetry(ctx context.Context, id uuid.UUID) error {
	maxRetries := 3
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		lastErr = w.reservations.Release(ctx, id)
		if lastErr == nil {
			return nil
		}
		backoff := time.Duration(1<<i) * time.Second
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return errors.Wrapf(lastErr, "failed after %d retries", maxRetries)
}

// finalizePaid settles a group whose invoice turned out to be paid:
// reservations go to PAID (reinstated if a racing sweep cancelled them)
// and the order is flipped with its notification enqueued exactly once.
func (w *ExpiryWorker) finalizePaid(ctx context.Context, ref string, group []domain.Reservation) error {
	ord, err := w.repo.GetOrderByPaymentRef(ctx, ref)
	if err != nil {
		return errors.Wrap(err, "order lookup failed")
	}

	var ticketNumbers []string
	for _, res := range group {
		err := w.reservations.MarkPaid(ctx, res.ID)
		if err != nil && errors.Is(err, domain.ErrInvalidState) {
			current, getErr := w.reservations.Get(ctx, res.ID)
			if getErr == nil && current.Status == domain.ReservationCancelled {
				replacement, reErr := w.reservations.Reinstate(ctx, current)
				if reErr != nil {
					return reErr
				}
				ticketNumbers = append(ticketNumbers, replacement.TicketNumber)
				continue
			}
		}
		if err != nil {
			return err
		}
		current, err := w.reservations.Get(ctx, res.ID)
		if err != nil {
			return err
		}
		ticketNumbers = append(ticketNumbers, current.TicketNumber)
	}

	notice := domain.OrderPaidNotice{
		OrderID:       ord.ID,
		ChatID:        ord.ChatID,
		Name:          ord.Customer.Name,
		Email:         ord.Customer.Email,
		Phone:         ord.Customer.Phone,
		Total:         ord.Total,
		TicketNumbers: ticketNumbers,
	}
	for _, line := range ord.Lines {
		notice.Lines = append(notice.Lines, domain.NoticeLine{
			Title:     line.Title,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	flipped, err := w.repo.FinalizeOrder(ctx, ord.ID, payload)
	if err != nil {
		return err
	}
	if flipped {
		w.audit.OrderPaid(ctx, *ord)
		w.logger.WithField("order_id", ord.ID).Info("late payment finalized by sweep")
	}
	return nil
}
