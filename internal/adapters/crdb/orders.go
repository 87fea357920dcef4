package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

func (r *Repository) CreateOrder(ctx context.Context, order domain.Order) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO orders (id, chat_id, name, phone, email, total, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, 'PENDING', $7)
		`, order.ID, order.ChatID, order.Customer.Name, order.Customer.Phone, order.Customer.Email, order.Total, order.CreatedAt)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, line := range order.Lines {
			line := line
			g.Go(func() error {
				_, err := tx.Exec(gctx, `
					INSERT INTO order_lines (order_id, event_id, title, unit_price, quantity)
					VALUES ($1, $2, $3, $4, $5)
				`, order.ID, line.EventID, line.Title, line.UnitPrice, line.Quantity)
				return err
			})
		}
		return g.Wait()
	})
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	var paymentRef *string
	err := r.pool.QueryRow(ctx, `
		SELECT id, chat_id, name, phone, email, total, payment_ref, status, created_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&order.ID, &order.ChatID, &order.Customer.Name, &order.Customer.Phone,
		&order.Customer.Email, &order.Total, &paymentRef, &order.Status, &order.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if paymentRef != nil {
		order.PaymentRef = *paymentRef
	}

	rows, err := r.pool.Query(ctx, `
		SELECT event_id, title, unit_price, quantity
		FROM order_lines WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.EventID, &line.Title, &line.UnitPrice, &line.Quantity); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}
	return &order, rows.Err()
}

func (r *Repository) GetOrderByPaymentRef(ctx context.Context, ref string) (*domain.Order, error) {
	var orderID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT id FROM orders WHERE payment_ref = $1`, ref).Scan(&orderID)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r.GetOrder(ctx, orderID)
}

func (r *Repository) SetOrderPaymentRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_ref = $2 WHERE id = $1 AND status = 'PENDING'
	`, orderID, ref)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkOrderFailed flips a pending order to FAILED. A paid order is never
// touched; failing an already failed order is a no-op.
func (r *Repository) MarkOrderFailed(ctx context.Context, orderID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = 'FAILED' WHERE id = $1 AND status = 'PENDING'
	`, orderID)
	return err
}

// FinalizeOrder flips PENDING -> PAID and enqueues the order.paid
// notification in the same transaction. The conditional update makes the
// flip happen exactly once: a second poll finds the order already PAID
// and no duplicate notification is written.
func (r *Repository) FinalizeOrder(ctx context.Context, orderID uuid.UUID, notice []byte) (bool, error) {
	flipped := false
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE orders SET status = 'PAID' WHERE id = $1 AND status = 'PENDING'
		`, orderID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return nil
		}
		flipped = true
		return r.InsertOutbox(ctx, tx, OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "order",
			AggregateID:   orderID,
			EventType:     "order.paid",
			Payload:       notice,
			DedupeKey:     orderID.String(),
		})
	})
	if err != nil {
		return false, err
	}
	return flipped, nil
}
