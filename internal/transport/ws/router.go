package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-read-marker/internal/pkg/id"
	"go.uber.org/zap"
)

// Envelope is one frame of the backend event stream. Replies to client requests
// carry no event name and are ignored.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Seq   int64           `json:"seq"`
}

// HandlerFunc handles the data payload of one named event.
type HandlerFunc func(ctx context.Context, data json.RawMessage) error

// Router maps event names to handlers. Handlers run one at a time in the order
// their events were dispatched.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	log      *zap.Logger
	observe  func(event string, err error)

	// run serializes handlers across callers of Dispatch.
	run sync.Mutex
	wg  sync.WaitGroup
}

func NewRouter(log *zap.Logger) *Router {
	return &Router{
		handlers: make(map[string]HandlerFunc),
		log:      log,
		observe:  func(string, error) {},
	}
}

// Observe installs fn to be told the outcome of every handled event.
// It must be called before the first Dispatch.
func (r *Router) Observe(fn func(event string, err error)) {
	r.observe = fn
}

// Handle registers h for event, replacing any earlier registration.
func (r *Router) Handle(event string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[event] = h
}

// Dispatch runs the handler registered for env.Event and returns once it has
// finished. Unknown events are dropped.
func (r *Router) Dispatch(ctx context.Context, env Envelope) {
	r.mu.RLock()
	h, ok := r.handlers[env.Event]
	r.mu.RUnlock()
	if !ok {
		return
	}

	log := r.log.With(zap.String("event", env.Event), zap.String("event_id", id.New()), zap.Int64("seq", env.Seq))
	r.wg.Add(1)
	defer r.wg.Done()
	r.run.Lock()
	defer r.run.Unlock()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("event handler panicked", zap.Any("panic", rec))
		}
	}()

	err := h(ctx, env.Data)
	r.observe(env.Event, err)
	if err != nil {
		log.Warn("event dropped", zap.Error(err))
		return
	}
	log.Debug("event handled")
}

// Wait blocks until every in-flight Dispatch has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}
