package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

func (r *Repository) CreateEvent(ctx context.Context, ev domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, title, description, price, starts_at, location, image_url, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, ev.ID, ev.Title, ev.Description, ev.Price, ev.StartsAt, ev.Location, ev.ImageURL, ev.Capacity)
	return err
}

func (r *Repository) UpdateEvent(ctx context.Context, ev domain.Event) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, price = $4, starts_at = $5, location = $6, image_url = $7, capacity = $8
		WHERE id = $1
	`, ev.ID, ev.Title, ev.Description, ev.Price, ev.StartsAt, ev.Location, ev.ImageURL, ev.Capacity)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrEventNotFound
	}
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	var ev domain.Event
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, description, price, starts_at, location, image_url, capacity
		FROM events WHERE id = $1
	`, id).Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Price, &ev.StartsAt, &ev.Location, &ev.ImageURL, &ev.Capacity)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrEventNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *Repository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, price, starts_at, location, image_url, capacity
		FROM events WHERE starts_at > now() ORDER BY starts_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		if err := rows.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Price, &ev.StartsAt, &ev.Location, &ev.ImageURL, &ev.Capacity); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
