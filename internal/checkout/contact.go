package checkout

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

type Prompt int

const (
	PromptNone Prompt = iota
	PromptName
	PromptPhone
	PromptEmail
)

type InvoiceReady struct {
	OrderID   uuid.UUID
	InvoiceID string
	PayURL    string
	Total     float64
	ExpiresAt time.Time
}

// StepResult tells the caller what to ask for next, or carries the
// payable invoice once contact capture is complete.
type StepResult struct {
	Next    Prompt
	Invoice *InvoiceReady
}

// StartCheckout freezes the cart and begins contact capture. Requires a
// non-empty (reconciled) cart.
func (o *Orchestrator) StartCheckout(ctx context.Context, chatID int64) error {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return err
	}
	if sess.State != domain.StateCartBuilding {
		return domain.ErrCheckoutInProgress
	}
	if err := o.reconcileCart(ctx, sess); err != nil {
		return err
	}
	if len(sess.Cart) == 0 {
		return domain.ErrEmptyCart
	}

	sess.State = domain.StateCollectingName
	return o.sessions.Put(ctx, sess)
}

// SubmitText feeds one line of user input into the contact-capture
// sequence. A validation failure leaves the session untouched so the
// same field can be asked again; previously captured fields survive.
func (o *Orchestrator) SubmitText(ctx context.Context, chatID int64, text string) (*StepResult, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return nil, err
	}

	switch sess.State {
	case domain.StateCollectingName:
		name, err := domain.ValidateName(text)
		if err != nil {
			return nil, err
		}
		sess.Name = name
		sess.State = domain.StateCollectingPhone
		if err := o.sessions.Put(ctx, sess); err != nil {
			return nil, err
		}
		return &StepResult{Next: PromptPhone}, nil

	case domain.StateCollectingPhone:
		phone, err := domain.NormalizePhone(text)
		if err != nil {
			return nil, err
		}
		sess.Phone = phone
		sess.State = domain.StateCollectingEmail
		if err := o.sessions.Put(ctx, sess); err != nil {
			return nil, err
		}
		return &StepResult{Next: PromptEmail}, nil

	case domain.StateCollectingEmail:
		email, err := domain.ValidateEmail(text)
		if err != nil {
			return nil, err
		}
		sess.Email = email
		invoice, err := o.createInvoice(ctx, sess)
		if err != nil {
			return nil, err
		}
		return &StepResult{Invoice: invoice}, nil
	}

	// Free text outside the capture sequence is not an error.
	return &StepResult{Next: PromptNone}, nil
}

// createInvoice is the CollectingContact -> AwaitingPayment transition:
// recompute the total from live reservations, persist the order, create
// the gateway invoice, attach the payment reference everywhere and hand
// the cart's reservations over to the order. A gateway failure rolls
// back the entire attempt; a pending order without a payable invoice
// must never survive.
func (o *Orchestrator) createInvoice(ctx context.Context, sess *domain.Session) (*InvoiceReady, error) {
	lines, resIDs, earliest, err := o.rebuildLines(ctx, sess)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		o.sessions.Delete(ctx, sess.ChatID)
		return nil, domain.ErrEmptyCart
	}

	snapshot := domain.CustomerSnapshot{Name: sess.Name, Phone: sess.Phone, Email: sess.Email}
	ord, err := o.orders.Create(ctx, sess.ChatID, snapshot, lines)
	if err != nil {
		// No order row exists; the cart and reservations stay intact so
		// the user can retry.
		return nil, errors.Wrap(err, "order creation failed")
	}
	o.audit.OrderCreated(ctx, *ord)

	inv, err := o.gateway.CreateInvoice(ctx, domain.InvoiceRequest{
		OrderID:     ord.ID,
		Amount:      ord.Total,
		ServiceName: serviceName(lines),
		Details:     "Заказ №" + ord.ID.String(),
		Customer:    snapshot,
	})
	if err != nil {
		o.abortAttempt(ctx, sess, ord.ID, resIDs, "invoice_failed")
		observability.CheckoutsTotal.WithLabelValues("invoice_failed").Inc()
		return nil, errors.Wrap(err, "invoice creation failed")
	}

	if err := o.orders.AttachPayment(ctx, ord.ID, inv.ID); err != nil {
		o.logger.WithError(err).WithField("order_id", ord.ID).Error("failed to store payment ref on order")
	}
	for _, id := range resIDs {
		if err := o.reservations.AttachPayment(ctx, id, inv.ID); err != nil {
			o.logger.WithError(err).WithField("reservation_id", id).Error("failed to store payment ref on reservation")
		}
	}

	sess.OrderID = ord.ID
	sess.InvoiceID = inv.ID
	sess.PayURL = inv.PayURL
	sess.Reservations = resIDs
	sess.Cart = nil
	sess.HoldExpiresAt = earliest.Add(o.holdTTL)
	sess.State = domain.StateAwaitingPayment
	if err := o.sessions.Put(ctx, sess); err != nil {
		// The user never saw the pay URL; without the session nothing
		// could ever finalize or fail this order, so compensate now.
		o.abortAttempt(ctx, sess, ord.ID, resIDs, "session_write_failed")
		observability.CheckoutsTotal.WithLabelValues("session_write_failed").Inc()
		return nil, errors.Wrap(err, "session update failed after invoice creation")
	}

	observability.CheckoutsTotal.WithLabelValues("invoice_created").Inc()
	return &InvoiceReady{
		OrderID:   ord.ID,
		InvoiceID: inv.ID,
		PayURL:    inv.PayURL,
		Total:     ord.Total,
		ExpiresAt: sess.HoldExpiresAt,
	}, nil
}

// rebuildLines turns cart lines into order lines priced from the live
// catalog, dropping reservations that are no longer pending. Prices are
// recomputed here, not reused from the cart snapshot, so a long checkout
// cannot pay a stale price.
func (o *Orchestrator) rebuildLines(ctx context.Context, sess *domain.Session) ([]domain.OrderLine, []uuid.UUID, time.Time, error) {
	var lines []domain.OrderLine
	var all []uuid.UUID
	earliest := o.now().UTC()

	for _, cartLine := range sess.Cart {
		ev, err := o.catalog.GetEvent(ctx, cartLine.EventID)
		if err != nil {
			return nil, nil, earliest, err
		}

		var ids []uuid.UUID
		for _, id := range cartLine.ReservationIDs {
			res, err := o.reservations.Get(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return nil, nil, earliest, err
			}
			if res.Status != domain.ReservationPending {
				continue
			}
			if res.CreatedAt.Before(earliest) {
				earliest = res.CreatedAt
			}
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			continue
		}

		lines = append(lines, domain.OrderLine{
			EventID:        ev.ID,
			Title:          ev.Title,
			UnitPrice:      ev.Price,
			Quantity:       len(ids),
			ReservationIDs: ids,
		})
		all = append(all, ids...)
	}
	return lines, all, earliest, nil
}

// abortAttempt is the compensating path: fail the order, cancel every
// reservation of the attempt and destroy the session.
func (o *Orchestrator) abortAttempt(ctx context.Context, sess *domain.Session, orderID uuid.UUID, resIDs []uuid.UUID, reason string) {
	if orderID != uuid.Nil {
		if err := o.orders.Fail(ctx, orderID); err != nil {
			o.logger.WithError(err).WithField("order_id", orderID).Error("failed to mark order failed")
		}
	}
	o.releaseAll(ctx, resIDs, reason)
	if err := o.sessions.Delete(ctx, sess.ChatID); err != nil {
		o.logger.WithError(err).WithField("chat_id", sess.ChatID).Error("failed to delete session")
	}
}

func serviceName(lines []domain.OrderLine) string {
	if len(lines) == 1 {
		return "Билет: " + lines[0].Title
	}
	return "Билеты в клуб"
}
