package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRouter_DispatchesByName(t *testing.T) {
	r := NewRouter(zap.NewNop())
	var hits int32
	r.Handle("posted", func(_ context.Context, data json.RawMessage) error {
		assert.JSONEq(t, `{"a":1}`, string(data))
		atomic.AddInt32(&hits, 1)
		return nil
	})

	r.Dispatch(context.Background(), Envelope{Event: "posted", Data: json.RawMessage(`{"a":1}`)})
	r.Dispatch(context.Background(), Envelope{Event: "posted", Data: json.RawMessage(`{"a":1}`)})
	r.Dispatch(context.Background(), Envelope{Event: "typing"})
	r.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestRouter_HandlerErrorIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRouter(zap.New(core))
	r.Handle("boom", func(context.Context, json.RawMessage) error { return errors.New("bad payload") })
	r.Handle("panic", func(context.Context, json.RawMessage) error { panic("oops") })

	r.Dispatch(context.Background(), Envelope{Event: "boom", Seq: 7})
	r.Dispatch(context.Background(), Envelope{Event: "panic"})
	r.Wait()

	assert.Equal(t, 1, logs.FilterMessage("event dropped").Len())
	assert.Equal(t, 1, logs.FilterMessage("event handler panicked").Len())
	entry := logs.FilterMessage("event dropped").All()[0]
	assert.Equal(t, "boom", entry.ContextMap()["event"])
	assert.NotEmpty(t, entry.ContextMap()["event_id"])
}

func TestRouter_ObserveSeesOutcome(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Handle("ok", func(context.Context, json.RawMessage) error { return nil })
	r.Handle("bad", func(context.Context, json.RawMessage) error { return errors.New("nope") })

	var mu sync.Mutex
	seen := map[string]bool{}
	r.Observe(func(event string, err error) {
		mu.Lock()
		defer mu.Unlock()
		seen[event] = err == nil
	})

	r.Dispatch(context.Background(), Envelope{Event: "ok"})
	r.Dispatch(context.Background(), Envelope{Event: "bad"})
	r.Wait()

	assert.Equal(t, map[string]bool{"ok": true, "bad": false}, seen)
}
