package readmarker

import (
	"context"

	"github.com/go-read-marker/internal/domain"
)

// staleness decides which messages currently carry a marker that has to go.
type staleness interface {
	staleMarkers(ctx context.Context) []string
}

// storeStaleness trusts the marker store: the recorded message is the only stale one.
// Channels use it because their last-message pointer only ever moves forward.
type storeStaleness struct {
	store          *MarkerStore
	conversationID string
}

func (s storeStaleness) staleMarkers(ctx context.Context) []string {
	if messageID, ok := s.store.Get(ctx, s.conversationID); ok {
		return []string{messageID}
	}
	return nil
}

// reactionStaleness reads the live reaction lists of a thread snapshot. Every
// marker the user placed anywhere in the thread is stale, including ones left
// behind by skipped reconciliations.
type reactionStaleness struct {
	snapshot []domain.Message
	userID   string
	emoji    string
}

func (r reactionStaleness) staleMarkers(_ context.Context) []string {
	var ids []string
	for _, m := range r.snapshot {
		for _, reaction := range m.ReactionsBy(r.userID, r.emoji) {
			messageID := reaction.MessageID
			if messageID == "" {
				messageID = m.MessageID
			}
			ids = append(ids, messageID)
		}
	}
	return ids
}
