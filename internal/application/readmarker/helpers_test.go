package readmarker

import (
	"context"
	"errors"
	"sync"

	"github.com/go-read-marker/internal/domain"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockBackend struct{ mock.Mock }

func (m *mockBackend) FetchThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	args := m.Called(ctx, threadID)
	msgs, _ := args.Get(0).([]domain.Message)
	return msgs, args.Error(1)
}
func (m *mockBackend) AddReaction(ctx context.Context, messageID, emoji string) error {
	return m.Called(ctx, messageID, emoji).Error(0)
}
func (m *mockBackend) RemoveReaction(ctx context.Context, messageID, emoji string) error {
	return m.Called(ctx, messageID, emoji).Error(0)
}

type mockIndex struct{ mock.Mock }

func (m *mockIndex) LastMessage(ctx context.Context, channelID string) (domain.Message, bool) {
	args := m.Called(ctx, channelID)
	msg, _ := args.Get(0).(domain.Message)
	return msg, args.Bool(1)
}

// mapMirror is an in-memory Mirror that can be told to fail.
type mapMirror struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	getHits int
}

func newMapMirror(seed map[string]string) *mapMirror {
	data := make(map[string]string)
	for k, v := range seed {
		data[k] = v
	}
	return &mapMirror{data: data}
}

func (m *mapMirror) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getHits++
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapMirror) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *mapMirror) value(key string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key]
}

// --- helpers ---

const (
	me    = "me"
	other = "other"
	emoji = "eyes"
)

var errBackend = errors.New("backend down")

func msg(id, author string, createAt int64, reactions ...domain.Reaction) domain.Message {
	return domain.Message{
		MessageID: id,
		UserID:    author,
		CreateAt:  createAt,
		Metadata:  domain.MessageMetadata{Reactions: reactions},
	}
}

func marker(userID, messageID string) domain.Reaction {
	return domain.Reaction{UserID: userID, MessageID: messageID, EmojiName: emoji}
}

func viewEvent(ids ...string) domain.ViewEvent {
	var ct domain.ChannelTimes
	for i, id := range ids {
		ct = append(ct, domain.ConversationTime{ConversationID: id, ViewedAt: int64(100 + i)})
	}
	return domain.ViewEvent{ChannelTimes: ct}
}
