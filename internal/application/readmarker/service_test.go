package readmarker

import (
	"context"
	"sync"
	"testing"

	"github.com/go-read-marker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap/zaptest"
)

func newSvc(t *testing.T, b *mockBackend, idx *mockIndex, mirror *mapMirror) Service {
	t.Helper()
	return NewService(ServiceDeps{
		Backend: b,
		Index:   idx,
		Mirror:  mirror,
		Me:      domain.User{UserID: me, Username: "me"},
		Emoji:   emoji,
		Logger:  zaptest.NewLogger(t),
	})
}

var ctx = context.Background()

// --- channel path ---

func TestChannelViewed_MovesMarkerToNewMessage(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"C1": "M1"})
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M2", other, 2), true)
	b.On("RemoveReaction", mock.Anything, "M1", emoji).Return(nil).Once()
	b.On("AddReaction", mock.Anything, "M2", emoji).Return(nil).Once()

	newSvc(t, b, idx, mirror).ChannelViewed(ctx, viewEvent("C1"))

	b.AssertExpectations(t)
	assert.Equal(t, "M2", mirror.value("C1"))
}

func TestChannelViewed_AlreadyMarkedIsNoop(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"C1": "M2"})
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M2", other, 2), true)

	newSvc(t, b, idx, mirror).ChannelViewed(ctx, viewEvent("C1"))

	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestChannelViewed_ReplayIsIdempotent(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(nil)
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M1", other, 1), true)
	b.On("AddReaction", mock.Anything, "M1", emoji).Return(nil)

	svc := newSvc(t, b, idx, mirror)
	svc.ChannelViewed(ctx, viewEvent("C1"))
	svc.ChannelViewed(ctx, viewEvent("C1"))

	b.AssertNumberOfCalls(t, "AddReaction", 1)
	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestChannelViewed_SelfAuthoredIsRecordedButNotMarked(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"C1": "M1"})
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M2", me, 2), true)
	b.On("RemoveReaction", mock.Anything, "M1", emoji).Return(nil).Once()

	svc := newSvc(t, b, idx, mirror)
	svc.ChannelViewed(ctx, viewEvent("C1"))

	b.AssertExpectations(t)
	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "M2", mirror.value("C1"))

	// the recorded message keeps later views quiet
	svc.ChannelViewed(ctx, viewEvent("C1"))
	b.AssertNumberOfCalls(t, "RemoveReaction", 1)
}

func TestChannelViewed_UnknownChannelIsNoop(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(nil)
	idx.On("LastMessage", mock.Anything, "C9").Return(domain.Message{}, false)

	newSvc(t, b, idx, mirror).ChannelViewed(ctx, viewEvent("C9"))

	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, mirror.value("C9"))
}

func TestChannelViewed_EmptyEventIsNoop(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	newSvc(t, b, idx, newMapMirror(nil)).ChannelViewed(ctx, domain.ViewEvent{})
	idx.AssertNotCalled(t, "LastMessage", mock.Anything, mock.Anything)
}

// Only the first conversation of a multi-entry event is reconciled; the others are
// recorded for bookkeeping. This mirrors the observed single-entry traffic.
func TestChannelViewed_MultiEntryActsOnFirstOnly(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(nil)
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M1", other, 1), true)
	b.On("AddReaction", mock.Anything, "M1", emoji).Return(nil).Once()

	svc := newSvc(t, b, idx, mirror)
	svc.ChannelViewed(ctx, viewEvent("C1", "C2", "C3"))

	b.AssertExpectations(t)
	idx.AssertNotCalled(t, "LastMessage", mock.Anything, "C2")
	idx.AssertNotCalled(t, "LastMessage", mock.Anything, "C3")
	assert.Empty(t, mirror.value("C2"))

	st := svc.Status()
	assert.Equal(t, map[string]int64{"C1": 100, "C2": 101, "C3": 102}, st.ViewedAt)
	assert.Equal(t, domain.EventChannelViewed, st.LastEvent)
}

func TestChannelViewed_BackendFailuresDoNotStopTheStore(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"C1": "M1"})
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M2", other, 2), true)
	b.On("RemoveReaction", mock.Anything, "M1", emoji).Return(errBackend).Once()
	b.On("AddReaction", mock.Anything, "M2", emoji).Return(errBackend).Once()

	newSvc(t, b, idx, mirror).ChannelViewed(ctx, viewEvent("C1"))

	b.AssertExpectations(t)
	assert.Equal(t, "M2", mirror.value("C1"))
}

func TestChannelViewed_ConcurrentViewsOfSameChannelMarkOnce(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"C1": "M1"})
	idx.On("LastMessage", mock.Anything, "C1").Return(msg("M2", other, 2), true)
	b.On("RemoveReaction", mock.Anything, "M1", emoji).Return(nil)
	b.On("AddReaction", mock.Anything, "M2", emoji).Return(nil)

	svc := newSvc(t, b, idx, mirror)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.ChannelViewed(ctx, viewEvent("C1"))
		}()
	}
	wg.Wait()

	b.AssertNumberOfCalls(t, "RemoveReaction", 1)
	b.AssertNumberOfCalls(t, "AddReaction", 1)
	assert.Equal(t, "M2", mirror.value("C1"))
}

func TestChannelViewed_ConversationLocksAreReleased(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(nil)
	for _, c := range []string{"C1", "C2", "C3"} {
		idx.On("LastMessage", mock.Anything, c).Return(msg("M"+c, other, 1), true)
		b.On("AddReaction", mock.Anything, "M"+c, emoji).Return(nil)
	}

	svc := newSvc(t, b, idx, mirror)
	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(c string) {
			defer wg.Done()
			svc.ChannelViewed(ctx, viewEvent(c))
		}([]string{"C1", "C2", "C3"}[i%3])
	}
	wg.Wait()

	s := svc.(*service)
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	assert.Empty(t, s.locks)
}

// --- thread path ---

func TestThreadReadChanged_InactiveDefersUntilFocus(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{
		msg("T1", other, 1),
		msg("R1", me, 2, marker(me, "R1")),
		msg("R2", other, 3),
	}, nil)

	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, "T1", svc.Status().PendingThread)

	b.On("RemoveReaction", mock.Anything, "R1", emoji).Return(nil).Once()
	b.On("AddReaction", mock.Anything, "R2", emoji).Return(nil).Once()
	svc.Focus(ctx)

	b.AssertExpectations(t)
	b.AssertNumberOfCalls(t, "FetchThread", 2)
	st := svc.Status()
	assert.True(t, st.Active)
	assert.Empty(t, st.PendingThread)
}

func TestThreadReadChanged_SelfAuthoredNewestClearsAllMarkers(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{
		msg("T1", other, 1, marker(me, "T1")),
		msg("R1", other, 2, marker(me, "R1"), marker(other, "R1")),
		msg("R2", other, 3, marker(me, "R2")),
		msg("R3", me, 4),
	}, nil)
	b.On("RemoveReaction", mock.Anything, "R1", emoji).Return(nil).Once()
	b.On("RemoveReaction", mock.Anything, "R2", emoji).Return(nil).Once()

	// gate is inactive, but a self-authored newest reply is applied immediately
	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertExpectations(t)
	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, "T1", emoji)
	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, svc.Status().PendingThread)
}

func TestThreadReadChanged_ActiveMovesMarkerToNewest(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{
		msg("R2", other, 3),
		msg("R1", other, 2, marker(me, "R1")),
		msg("T1", other, 1),
	}, nil)
	b.On("RemoveReaction", mock.Anything, "R1", emoji).Return(nil).Once()
	b.On("AddReaction", mock.Anything, "R2", emoji).Return(nil).Once()

	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.Focus(ctx)
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertExpectations(t)
}

func TestThreadReadChanged_NeverUsesMarkerStore(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	mirror := newMapMirror(map[string]string{"T1": "R0"})
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{msg("R1", other, 2)}, nil)
	b.On("AddReaction", mock.Anything, "R1", emoji).Return(nil).Once()

	svc := newSvc(t, b, idx, mirror)
	svc.Focus(ctx)
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertExpectations(t)
	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, "R0", emoji)
	assert.Zero(t, mirror.getHits)
	assert.Equal(t, "R0", mirror.value("T1"))
}

func TestThreadReadChanged_LatestDeferralWins(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{msg("A1", other, 2)}, nil)
	b.On("FetchThread", mock.Anything, "T2").Return([]domain.Message{msg("B1", other, 2)}, nil)

	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T2"})
	assert.Equal(t, "T2", svc.Status().PendingThread)

	b.On("AddReaction", mock.Anything, "B1", emoji).Return(nil).Once()
	svc.Focus(ctx)

	b.AssertExpectations(t)
	b.AssertNumberOfCalls(t, "FetchThread", 3)
	b.AssertNotCalled(t, "AddReaction", mock.Anything, "A1", emoji)
}

func TestThreadReadChanged_FetchFailureIsNoop(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return(nil, errBackend)

	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.Focus(ctx)
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	b.AssertNotCalled(t, "RemoveReaction", mock.Anything, mock.Anything, mock.Anything)
}

func TestThreadReadChanged_RootOnlyThreadIsNoop(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	b.On("FetchThread", mock.Anything, "T1").Return([]domain.Message{msg("T1", other, 1)}, nil)

	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.ThreadReadChanged(ctx, domain.ThreadEvent{ThreadID: "T1"})

	b.AssertNotCalled(t, "AddReaction", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, svc.Status().PendingThread)
}

// --- focus and bookkeeping ---

func TestFocus_WithoutPendingThreadDoesNothing(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.Focus(ctx)
	b.AssertNotCalled(t, "FetchThread", mock.Anything, mock.Anything)
	assert.True(t, svc.Status().Active)

	svc.Blur()
	assert.False(t, svc.Status().Active)
}

func TestThreadUpdated_RecordsEventOnly(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	svc := newSvc(t, b, idx, newMapMirror(nil))
	svc.ThreadUpdated(ctx, domain.ThreadUpdatedEvent{Thread: `{"id":"T1"}`})

	st := svc.Status()
	assert.Equal(t, domain.EventThreadUpdated, st.LastEvent)
	assert.Equal(t, me, st.Me)
	assert.Equal(t, emoji, st.Emoji)
	b.AssertNotCalled(t, "FetchThread", mock.Anything, mock.Anything)
}

func TestMarker_ReadsThroughStore(t *testing.T) {
	b, idx := &mockBackend{}, &mockIndex{}
	svc := newSvc(t, b, idx, newMapMirror(map[string]string{"C1": "M7"}))

	got, ok := svc.Marker(ctx, "C1")
	assert.True(t, ok)
	assert.Equal(t, "M7", got)

	_, ok = svc.Marker(ctx, "C2")
	assert.False(t, ok)
}
