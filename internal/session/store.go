package session

import (
	"context"

	"github.com/frantsuz-club/ticket-bot/internal/domain"
)

// Store holds per-chat checkout sessions. Get returns (nil, nil) when no
// session exists; sessions expire after the configured TTL of
// inactivity. Implementations: the in-memory store below and the redis
// adapter for production.
type Store interface {
	Get(ctx context.Context, chatID int64) (*domain.Session, error)
	Put(ctx context.Context, sess *domain.Session) error
	Delete(ctx context.Context, chatID int64) error
}
