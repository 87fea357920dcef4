package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
	"github.com/frantsuz-club/ticket-bot/internal/observability"
)

type PollOutcome int

const (
	PollPaid PollOutcome = iota
	PollNotPaid
	PollExpired
)

type PollResult struct {
	Outcome   PollOutcome
	Remaining time.Duration
	Email     string
}

type CancelResult struct {
	// AlreadyPaid is set when cancellation raced a completed payment;
	// the order was finalized instead of released.
	AlreadyPaid bool
}

// PollPayment is the user-triggered status check while awaiting payment.
// A gateway error is reported as retryable and changes nothing; only an
// authoritative "not paid" past the hold window aborts the attempt.
func (o *Orchestrator) PollPayment(ctx context.Context, chatID int64) (PollResult, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return PollResult{}, err
	}
	if sess.State != domain.StateAwaitingPayment || sess.InvoiceID == "" {
		return PollResult{}, domain.ErrNoActivePayment
	}

	status, err := o.gateway.CheckStatus(ctx, sess.InvoiceID)
	if err != nil {
		// Not a failure of the payment itself; the user may retry.
		return PollResult{}, errors.Wrap(err, "status check failed")
	}

	if status == domain.PaymentPaid {
		if err := o.finalize(ctx, sess); err != nil {
			return PollResult{}, err
		}
		return PollResult{Outcome: PollPaid, Email: sess.Email}, nil
	}

	remaining := sess.HoldExpiresAt.Sub(o.now())
	if remaining > 0 {
		return PollResult{Outcome: PollNotPaid, Remaining: remaining}, nil
	}

	// Hold window lapsed and the gateway just confirmed the invoice is
	// unpaid; that check is the reconciliation required before releasing.
	o.abortAttempt(ctx, sess, sess.OrderID, sess.Reservations, "hold_expired")
	observability.CheckoutsTotal.WithLabelValues("expired").Inc()
	return PollResult{Outcome: PollExpired}, nil
}

// Cancel aborts the attempt from any state. When an invoice exists the
// gateway is consulted first: a payment confirmed in the meantime wins
// and the order is finalized, never released.
func (o *Orchestrator) Cancel(ctx context.Context, chatID int64) (CancelResult, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.sessions.Get(ctx, chatID)
	if err != nil {
		return CancelResult{}, err
	}
	if sess == nil {
		return CancelResult{}, nil
	}

	if sess.State == domain.StateAwaitingPayment && sess.InvoiceID != "" {
		status, err := o.gateway.CheckStatus(ctx, sess.InvoiceID)
		if err != nil {
			// Releasing without the gateway's answer could destroy a
			// paid order. Keep the attempt intact; the user can retry.
			return CancelResult{}, errors.Wrap(err, "status check failed")
		}
		if status == domain.PaymentPaid {
			if err := o.finalize(ctx, sess); err != nil {
				return CancelResult{}, err
			}
			return CancelResult{AlreadyPaid: true}, nil
		}
	}

	var resIDs = sess.Reservations
	for _, line := range sess.Cart {
		resIDs = append(resIDs, line.ReservationIDs...)
	}
	o.abortAttempt(ctx, sess, sess.OrderID, resIDs, "user_cancelled")
	observability.CheckoutsTotal.WithLabelValues("cancelled").Inc()
	return CancelResult{}, nil
}

// finalize marks every reservation of the order paid, flips the order
// and enqueues the paid notification exactly once. A reservation that
// was cancelled by a racing sweep is reinstated: the provider confirmed
// the money, so the ticket is honored.
func (o *Orchestrator) finalize(ctx context.Context, sess *domain.Session) error {
	var ticketNumbers []string
	for i, id := range sess.Reservations {
		err := o.reservations.MarkPaid(ctx, id)
		if err != nil && errors.Is(err, domain.ErrInvalidState) {
			res, getErr := o.reservations.Get(ctx, id)
			if getErr == nil && res.Status == domain.ReservationCancelled {
				replacement, reErr := o.reservations.Reinstate(ctx, res)
				if reErr != nil {
					return reErr
				}
				sess.Reservations[i] = replacement.ID
				ticketNumbers = append(ticketNumbers, replacement.TicketNumber)
				continue
			}
		}
		if err != nil {
			return err
		}
		res, err := o.reservations.Get(ctx, id)
		if err != nil {
			return err
		}
		ticketNumbers = append(ticketNumbers, res.TicketNumber)
	}

	ord, err := o.orders.Get(ctx, sess.OrderID)
	if err != nil {
		return err
	}

	notice := domain.OrderPaidNotice{
		OrderID:       ord.ID,
		ChatID:        sess.ChatID,
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

	flipped, err := o.orders.Finalize(ctx, ord.ID, payload)
	if err != nil {
		return err
	}
	if flipped {
		o.audit.OrderPaid(ctx, *ord)
		observability.CheckoutsTotal.WithLabelValues("fulfilled").Inc()
	}

	sess.State = domain.StateFulfilled
	return o.sessions.Delete(ctx, sess.ChatID)
}
