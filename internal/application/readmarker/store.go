package readmarker

import (
	"context"
	"fmt"

	"github.com/puzpuzpuz/xsync"
	"go.uber.org/zap"
)

// Mirror is the synchronous persistent key-value capability backing the marker store.
// A missing key is reported as ok=false, never as an error.
type Mirror interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
}

// MarkerStore remembers, per conversation, which message carries the marker.
// The cache is always at least as fresh as the mirror, so reads prefer it.
type MarkerStore struct {
	cache  *xsync.MapOf[string, string]
	mirror Mirror
	log    *zap.Logger
}

func NewMarkerStore(mirror Mirror, log *zap.Logger) *MarkerStore {
	return &MarkerStore{
		cache:  xsync.NewMapOf[string](),
		mirror: mirror,
		log:    log,
	}
}

// Get returns the marked message for conversationID. Mirror failures degrade to
// "no prior marker".
func (s *MarkerStore) Get(ctx context.Context, conversationID string) (string, bool) {
	if messageID, ok := s.cache.Load(conversationID); ok {
		return messageID, true
	}
	messageID, ok, err := s.mirror.Get(ctx, conversationID)
	if err != nil {
		s.log.Warn("marker mirror read failed",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return "", false
	}
	if !ok || messageID == "" {
		return "", false
	}
	s.cache.Store(conversationID, messageID)
	return messageID, true
}

// Set records messageID for conversationID in the cache, then in the mirror.
// The cache keeps the new value even when the mirror write fails.
func (s *MarkerStore) Set(ctx context.Context, conversationID, messageID string) error {
	s.cache.Store(conversationID, messageID)
	if err := s.mirror.Set(ctx, conversationID, messageID); err != nil {
		return fmt.Errorf("mirror marker %s: %w", conversationID, err)
	}
	return nil
}
