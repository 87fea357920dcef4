package checkout

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

type CartView struct {
	Lines    []domain.CartLine
	Quantity int
	Total    float64
}

// AddToCart reserves one unit of the event and appends it to the chat's
// cart line. The reservation is created first; if the session write then
// fails, the reservation is rolled back so the two stores cannot drift
// apart in the dangerous direction (a held seat nobody sees).
func (o *Orchestrator) AddToCart(ctx context.Context, chatID int64, eventID uuid.UUID) (*domain.CartLine, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateCartBuilding {
		return nil, domain.ErrCheckoutInProgress
	}

	ev, err := o.catalog.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	res, err := o.reservations.Reserve(ctx, eventID, chatID)
	if err != nil {
		return nil, err
	}
	o.audit.ReservationCreated(ctx, *res)

	line := findLine(sess, eventID)
	if line == nil {
		sess.Cart = append(sess.Cart, domain.CartLine{
			EventID:   ev.ID,
			Title:     ev.Title,
			UnitPrice: ev.Price,
		})
		line = &sess.Cart[len(sess.Cart)-1]
	}
	line.ReservationIDs = append(line.ReservationIDs, res.ID)
	normalizeCart(sess)

	if err := o.sessions.Put(ctx, sess); err != nil {
		o.releaseAll(ctx, []uuid.UUID{res.ID}, "cart_write_failed")
		return nil, errors.Wrap(err, "cart update failed")
	}
	return findLine(sess, eventID), nil
}

// DecrementCart releases the most recently reserved unit of the event.
// Returns the remaining line, or nil when the line is gone.
func (o *Orchestrator) DecrementCart(ctx context.Context, chatID int64, eventID uuid.UUID) (*domain.CartLine, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if sess.State != domain.StateCartBuilding {
		return nil, domain.ErrCheckoutInProgress
	}

	line := findLine(sess, eventID)
	if line == nil || len(line.ReservationIDs) == 0 {
		return nil, domain.ErrNotFound
	}

	last := line.ReservationIDs[len(line.ReservationIDs)-1]
	o.releaseAll(ctx, []uuid.UUID{last}, "cart_decrement")
	line.ReservationIDs = line.ReservationIDs[:len(line.ReservationIDs)-1]
	normalizeCart(sess)

	if err := o.sessions.Put(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "cart update failed")
	}
	return findLine(sess, eventID), nil
}

// RemoveFromCart drops the whole line, releasing every unit.
func (o *Orchestrator) RemoveFromCart(ctx context.Context, chatID int64, eventID uuid.UUID) error {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return err
	}
	if sess.State != domain.StateCartBuilding {
		return domain.ErrCheckoutInProgress
	}

	line := findLine(sess, eventID)
	if line == nil {
		return domain.ErrNotFound
	}

	o.releaseAll(ctx, line.ReservationIDs, "cart_remove")
	line.ReservationIDs = nil
	normalizeCart(sess)

	return o.sessions.Put(ctx, sess)
}

// ClearCart empties the cart, releasing every reserved unit.
func (o *Orchestrator) ClearCart(ctx context.Context, chatID int64) error {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return err
	}
	if sess.State != domain.StateCartBuilding {
		return domain.ErrCheckoutInProgress
	}

	for _, line := range sess.Cart {
		o.releaseAll(ctx, line.ReservationIDs, "cart_clear")
	}
	sess.Cart = nil

	return o.sessions.Put(ctx, sess)
}

// Cart reconciles the cart against the reservation store and returns
// the current view. Reservations cancelled behind the session's back
// (an expiry sweep, a crashed mutation) are dropped here, restoring the
// quantity == len(reservation_ids) invariant.
func (o *Orchestrator) Cart(ctx context.Context, chatID int64) (CartView, error) {
	defer o.locks.lock(chatID)()

	sess, err := o.session(ctx, chatID)
	if err != nil {
		return CartView{}, err
	}
	if err := o.reconcileCart(ctx, sess); err != nil {
		return CartView{}, err
	}
	if err := o.sessions.Put(ctx, sess); err != nil {
		return CartView{}, err
	}
	return CartView{Lines: sess.Cart, Quantity: sess.CartQuantity(), Total: sess.CartTotal()}, nil
}

func (o *Orchestrator) reconcileCart(ctx context.Context, sess *domain.Session) error {
	for i := range sess.Cart {
		line := &sess.Cart[i]
		kept := line.ReservationIDs[:0]
		for _, id := range line.ReservationIDs {
			res, err := o.reservations.Get(ctx, id)
			if err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					continue
				}
				return err
			}
			if res.Status == domain.ReservationPending {
				kept = append(kept, id)
			}
		}
		line.ReservationIDs = kept
	}
	normalizeCart(sess)
	return nil
}

func findLine(sess *domain.Session, eventID uuid.UUID) *domain.CartLine {
	for i := range sess.Cart {
		if sess.Cart[i].EventID == eventID {
			return &sess.Cart[i]
		}
	}
	return nil
}

// normalizeCart restores quantity = len(reservation_ids) on every line
// and drops empty lines.
func normalizeCart(sess *domain.Session) {
	kept := sess.Cart[:0]
	for _, line := range sess.Cart {
		line.Quantity = len(line.ReservationIDs)
		if line.Quantity > 0 {
			kept = append(kept, line)
		}
	}
	sess.Cart = kept
}
