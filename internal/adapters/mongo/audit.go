package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

// AuditTrail records every reservation, order and checkout transition.
// Writes are best effort: an audit failure is logged and never fails the
// operation being audited.
type AuditTrail struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditTrail(db *mongo.Database, logger observability.Logger) *AuditTrail {
	return &AuditTrail{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type AuditRecord struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	ChatID    int64     `bson:"chat_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditTrail) Record(ctx context.Context, action string, chatID int64, data map[string]interface{}) {
	rec := AuditRecord{
		ID:        uuid.New(),
		Action:    action,
		ChatID:    chatID,
		Timestamp: time.Now().UTC(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, rec); err != nil {
		a.logger.WithError(err).Error("failed to insert audit record")
	}
}

func (a *AuditTrail) ReservationCreated(ctx context.Context, res domain.Reservation) {
	a.Record(ctx, "reservation.created", res.ChatID, map[string]interface{}{
		"reservation_id": res.ID,
		"event_id":       res.EventID,
		"ticket_number":  res.TicketNumber,
	})
}

func (a *AuditTrail) ReservationReleased(ctx context.Context, res domain.Reservation, reason string) {
	a.Record(ctx, "reservation.released", res.ChatID, map[string]interface{}{
		"reservation_id": res.ID,
		"event_id":       res.EventID,
		"reason":         reason,
	})
}

func (a *AuditTrail) OrderCreated(ctx context.Context, order domain.Order) {
	a.Record(ctx, "order.created", order.ChatID, map[string]interface{}{
		"order_id": order.ID,
		"total":    order.Total,
		"email":    order.Customer.Email,
	})
}

func (a *AuditTrail) OrderPaid(ctx context.Context, order domain.Order) {
	a.Record(ctx, "order.paid", order.ChatID, map[string]interface{}{
		"order_id":    order.ID,
		"total":       order.Total,
		"payment_ref": order.PaymentRef,
	})
}
