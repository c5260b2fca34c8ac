package mattermost

import (
	"context"
	"sync"

	"github.com/go-read-marker/internal/domain"
	"go.uber.org/zap"
)

type lastMessageSource interface {
	FetchLastMessage(ctx context.Context, channelID string) (domain.Message, error)
}

// Index keeps the latest message of each channel. Posted events keep it current;
// a channel seen for the first time is filled from the REST API.
type Index struct {
	mu     sync.RWMutex
	last   map[string]domain.Message
	source lastMessageSource
	log    *zap.Logger
}

func NewIndex(source lastMessageSource, log *zap.Logger) *Index {
	return &Index{
		last:   make(map[string]domain.Message),
		source: source,
		log:    log,
	}
}

// Observe records m if it is at least as new as what the index holds for its channel.
func (i *Index) Observe(m domain.Message) {
	if m.ChannelID == "" {
		return
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if cur, ok := i.last[m.ChannelID]; ok && cur.CreateAt > m.CreateAt {
		return
	}
	i.last[m.ChannelID] = m
}

// Forget drops the channel entry when it points at messageID, so the next
// lookup refetches it.
func (i *Index) Forget(channelID, messageID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if cur, ok := i.last[channelID]; ok && cur.MessageID == messageID {
		delete(i.last, channelID)
	}
}

// Reset drops every entry. Posts made while the event stream was down never
// reached Observe, so a new session starts from the REST API again.
func (i *Index) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.last = make(map[string]domain.Message)
}

// LastMessage returns the newest message of channelID. A channel the backend
// cannot resolve is reported as absent.
func (i *Index) LastMessage(ctx context.Context, channelID string) (domain.Message, bool) {
	i.mu.RLock()
	m, ok := i.last[channelID]
	i.mu.RUnlock()
	if ok {
		return m, true
	}

	m, err := i.source.FetchLastMessage(ctx, channelID)
	if err != nil {
		i.log.Debug("last message lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		return domain.Message{}, false
	}
	if m.ChannelID == "" {
		m.ChannelID = channelID
	}
	i.Observe(m)

	i.mu.RLock()
	defer i.mu.RUnlock()
	m, ok = i.last[channelID]
	return m, ok
}
