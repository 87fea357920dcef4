package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

// InsertPending creates a pending reservation only while the count of
// active (pending + paid) reservations is below the event capacity. The
// check and the insert are one statement executed under SERIALIZABLE
// isolation, so concurrent reservations cannot oversell.
func (r *Repository) InsertPending(ctx context.Context, res domain.Reservation) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			INSERT INTO reservations (id, event_id, chat_id, ticket_number, status, created_at)
			SELECT $1, $2, $3, $4, 'PENDING', $5
			WHERE (
				SELECT count(*) FROM reservations
				WHERE event_id = $2 AND status IN ('PENDING', 'PAID')
			) < (SELECT capacity FROM events WHERE id = $2)
		`, res.ID, res.EventID, res.ChatID, res.TicketNumber, res.CreatedAt)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			// Either the event is gone or it is sold out.
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, res.EventID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return domain.ErrEventNotFound
			}
			return domain.ErrCapacityExceeded
		}
		return nil
	})
}

// InsertReinstated writes a replacement reservation for one that was
// cancelled locally but whose payment the gateway later confirmed. It
// bypasses the capacity guard: a confirmed payment always wins.
func (r *Repository) InsertReinstated(ctx context.Context, res domain.Reservation) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reservations (id, event_id, chat_id, ticket_number, status, payment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, res.ID, res.EventID, res.ChatID, res.TicketNumber, res.Status, nullable(res.PaymentRef), res.CreatedAt)
	return err
}

func (r *Repository) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var res domain.Reservation
	var paymentRef *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, chat_id, ticket_number, status, payment_ref, created_at, used_at
		FROM reservations WHERE id = $1
	`, id).Scan(&res.ID, &res.EventID, &res.ChatID, &res.TicketNumber, &res.Status, &paymentRef, &res.CreatedAt, &res.UsedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentRef != nil {
		res.PaymentRef = *paymentRef
	}
	return &res, nil
}

// TransitionReservation moves a reservation from one status to another,
// returning false when the row was not in the expected source status.
// Illegal transitions never reach the database this way.
func (r *Repository) TransitionReservation(ctx context.Context, id uuid.UUID, from, to domain.ReservationStatus) (bool, error) {
	var result pgconn.CommandTag
	var err error
	if to == domain.ReservationUsed {
		result, err = r.pool.Exec(ctx, `
			UPDATE reservations SET status = $3, used_at = $4 WHERE id = $1 AND status = $2
		`, id, from, to, time.Now().UTC())
	} else {
		result, err = r.pool.Exec(ctx, `
			UPDATE reservations SET status = $3 WHERE id = $1 AND status = $2
		`, id, from, to)
	}
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) AttachPaymentRef(ctx context.Context, id uuid.UUID, ref string) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		UPDATE reservations SET payment_ref = $2 WHERE id = $1 AND status = 'PENDING'
	`, id, ref)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() > 0, nil
}

func (r *Repository) ReservationsByPaymentRef(ctx context.Context, ref string) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, chat_id, ticket_number, status, payment_ref, created_at, used_at
		FROM reservations WHERE payment_ref = $1
	`, ref)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

// GetExpiredPending returns pending reservations created before the
// cutoff. The expiry worker reconciles each against the gateway before
// releasing anything.
func (r *Repository) GetExpiredPending(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, chat_id, ticket_number, status, payment_ref, created_at, used_at
		FROM reservations WHERE status = 'PENDING' AND created_at <= $1
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanReservations(rows)
}

func scanReservations(rows pgx.Rows) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		var paymentRef *string
		if err := rows.Scan(&res.ID, &res.EventID, &res.ChatID, &res.TicketNumber, &res.Status, &paymentRef, &res.CreatedAt, &res.UsedAt); err != nil {
			return nil, err
		}
		if paymentRef != nil {
			res.PaymentRef = *paymentRef
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
