package metrics

import (
	"context"

	"github.com/go-read-marker/internal/domain"
)

type backend interface {
	FetchThread(ctx context.Context, threadID string) ([]domain.Message, error)
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
}

// Backend counts the reconciler's calls into the messaging backend.
type Backend struct {
	next backend
	m    *Metrics
}

// InstrumentBackend wraps next so every call is counted by outcome.
func (m *Metrics) InstrumentBackend(next backend) *Backend {
	return &Backend{next: next, m: m}
}

func (b *Backend) FetchThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	msgs, err := b.next.FetchThread(ctx, threadID)
	b.m.fetches.WithLabelValues(result(err)).Inc()
	return msgs, err
}

func (b *Backend) AddReaction(ctx context.Context, messageID, emoji string) error {
	err := b.next.AddReaction(ctx, messageID, emoji)
	b.m.reactions.WithLabelValues("add", result(err)).Inc()
	return err
}

func (b *Backend) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	err := b.next.RemoveReaction(ctx, messageID, emoji)
	b.m.reactions.WithLabelValues("remove", result(err)).Inc()
	return err
}
