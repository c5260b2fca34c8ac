package readmarker

import (
	"context"
	"sync"

	"github.com/go-read-marker/internal/domain"
	"go.uber.org/zap"
)

// Backend is the slice of the messaging API the reconciler writes through.
type Backend interface {
	ThreadSource
	AddReaction(ctx context.Context, messageID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, emoji string) error
}

// LiveIndex knows the latest message of every channel the user can see.
type LiveIndex interface {
	LastMessage(ctx context.Context, channelID string) (domain.Message, bool)
}

// Status is a point-in-time view of the reconciler's bookkeeping.
type Status struct {
	Active        bool             `json:"active"`
	PendingThread string           `json:"pending_thread,omitempty"`
	LastEvent     string           `json:"last_event,omitempty"`
	ViewedAt      map[string]int64 `json:"viewed_at"`
	Me            string           `json:"me"`
	Emoji         string           `json:"emoji"`
}

type Service interface {
	ChannelViewed(ctx context.Context, ev domain.ViewEvent)
	ThreadReadChanged(ctx context.Context, ev domain.ThreadEvent)
	ThreadUpdated(ctx context.Context, ev domain.ThreadUpdatedEvent)
	Focus(ctx context.Context)
	Blur()
	Status() Status
	Marker(ctx context.Context, conversationID string) (string, bool)
}

type ServiceDeps struct {
	Backend Backend
	Index   LiveIndex
	Mirror  Mirror
	Me      domain.User
	Emoji   string
	Logger  *zap.Logger
}

type service struct {
	backend Backend
	index   LiveIndex
	store   *MarkerStore
	fetcher *SnapshotFetcher
	gate    *FocusGate
	me      domain.User
	emoji   string
	log     *zap.Logger

	// One lock per conversation id in use; handlers for the same conversation run
	// one at a time. An entry is dropped once no handler holds or waits on it.
	locksMu sync.Mutex
	locks   map[string]*convLock

	mu        sync.Mutex
	lastEvent string
	viewedAt  map[string]int64
}

func NewService(deps ServiceDeps) Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &service{
		backend:  deps.Backend,
		index:    deps.Index,
		store:    NewMarkerStore(deps.Mirror, log),
		fetcher:  NewSnapshotFetcher(deps.Backend),
		gate:     NewFocusGate(),
		me:       deps.Me,
		emoji:    deps.Emoji,
		log:      log,
		locks:    make(map[string]*convLock),
		viewedAt: make(map[string]int64),
	}
}

// ChannelViewed moves the channel marker to the channel's latest message. Only the
// first conversation of the event is reconciled; the rest are only recorded.
func (s *service) ChannelViewed(ctx context.Context, ev domain.ViewEvent) {
	s.record(domain.EventChannelViewed, ev.ChannelTimes)

	trigger, ok := ev.Trigger()
	if !ok {
		return
	}
	channelID := trigger.ConversationID
	if len(ev.ChannelTimes) > 1 {
		s.log.Debug("view event carries extra conversations, acting on the first only",
			zap.String("channel_id", channelID), zap.Int("entries", len(ev.ChannelTimes)))
	}

	unlock := s.lock(channelID)
	defer unlock()

	latest, ok := s.index.LastMessage(ctx, channelID)
	if !ok {
		s.log.Debug("no known last message for viewed channel", zap.String("channel_id", channelID))
		return
	}
	// Views fire without new messages too (leaving a thread, unfollowed replies).
	if recorded, ok := s.store.Get(ctx, channelID); ok && recorded == latest.MessageID {
		return
	}

	s.clearStale(ctx, storeStaleness{store: s.store, conversationID: channelID})
	if !latest.AuthoredBy(s.me.UserID) {
		s.addMarker(ctx, latest.MessageID)
	}
	if err := s.store.Set(ctx, channelID, latest.MessageID); err != nil {
		s.log.Warn("marker store write failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *service) ThreadReadChanged(ctx context.Context, ev domain.ThreadEvent) {
	s.record(domain.EventThreadReadChanged, nil)
	s.reconcileThread(ctx, ev.ThreadID)
}

func (s *service) ThreadUpdated(_ context.Context, _ domain.ThreadUpdatedEvent) {
	s.record(domain.EventThreadUpdated, nil)
}

// Focus activates the gate and replays the thread that was parked while backgrounded.
func (s *service) Focus(ctx context.Context) {
	threadID, ok := s.gate.Focus()
	if !ok {
		return
	}
	s.log.Debug("replaying deferred thread", zap.String("thread_id", threadID))
	s.reconcileThread(ctx, threadID)
}

func (s *service) Blur() {
	s.gate.Blur()
}

func (s *service) Status() Status {
	s.mu.Lock()
	viewed := make(map[string]int64, len(s.viewedAt))
	for k, v := range s.viewedAt {
		viewed[k] = v
	}
	lastEvent := s.lastEvent
	s.mu.Unlock()

	pending, _ := s.gate.Pending()
	return Status{
		Active:        s.gate.IsActive(),
		PendingThread: pending,
		LastEvent:     lastEvent,
		ViewedAt:      viewed,
		Me:            s.me.UserID,
		Emoji:         s.emoji,
	}
}

// Marker returns the message currently holding the channel marker.
func (s *service) Marker(ctx context.Context, conversationID string) (string, bool) {
	return s.store.Get(ctx, conversationID)
}

// reconcileThread derives staleness from the thread's live reactions; the marker
// store is not consulted because replies can be inserted out of order.
func (s *service) reconcileThread(ctx context.Context, threadID string) {
	unlock := s.lock(threadID)
	defer unlock()

	snapshot, err := s.fetcher.Fetch(ctx, threadID)
	if err != nil {
		s.log.Warn("thread snapshot failed", zap.String("thread_id", threadID), zap.Error(err))
		return
	}
	if len(snapshot) == 0 {
		return
	}
	newest := snapshot[len(snapshot)-1]
	mine := newest.AuthoredBy(s.me.UserID)

	if !mine && !s.gate.IsActive() {
		s.gate.Defer(threadID)
		s.log.Debug("window inactive, thread deferred until focus", zap.String("thread_id", threadID))
		return
	}

	s.clearStale(ctx, reactionStaleness{snapshot: snapshot, userID: s.me.UserID, emoji: s.emoji})
	if !mine {
		s.addMarker(ctx, newest.MessageID)
	}
}

// clearStale removes the marker from every message the strategy reports.
// Failures are logged and not retried.
func (s *service) clearStale(ctx context.Context, st staleness) {
	for _, messageID := range st.staleMarkers(ctx) {
		if err := s.backend.RemoveReaction(ctx, messageID, s.emoji); err != nil {
			s.log.Warn("remove marker failed", zap.String("message_id", messageID), zap.Error(err))
		}
	}
}

func (s *service) addMarker(ctx context.Context, messageID string) {
	if err := s.backend.AddReaction(ctx, messageID, s.emoji); err != nil {
		s.log.Warn("add marker failed", zap.String("message_id", messageID), zap.Error(err))
	}
}

type convLock struct {
	mu   sync.Mutex
	refs int
}

func (s *service) lock(conversationID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[conversationID]
	if !ok {
		l = &convLock{}
		s.locks[conversationID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		defer s.locksMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, conversationID)
		}
	}
}

func (s *service) record(event string, times domain.ChannelTimes) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastEvent = event
	for _, ct := range times {
		s.viewedAt[ct.ConversationID] = ct.ViewedAt
	}
}
