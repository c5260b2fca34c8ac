package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-read-marker/internal/application/readmarker"
	"github.com/go-read-marker/internal/domain"
	"github.com/go-read-marker/internal/pkg/validate"
	"go.uber.org/zap"
)

// Index is the live last-message index fed by posted and post_deleted events.
// It is reset on every hello, since events missed while disconnected are not replayed.
type Index interface {
	Observe(m domain.Message)
	Forget(channelID, messageID string)
	Reset()
}

// Register wires the read-marker event handlers into r.
func Register(r *Router, svc readmarker.Service, idx Index, log *zap.Logger) {
	h := &handlers{svc: svc, idx: idx, log: log, now: time.Now}
	r.Handle(domain.EventHello, h.hello)
	r.Handle(domain.EventPosted, h.posted)
	r.Handle(domain.EventPostDeleted, h.postDeleted)
	r.Handle(domain.EventMultipleChannelsViewed, h.multipleChannelsViewed)
	r.Handle(domain.EventChannelViewed, h.channelViewed)
	r.Handle(domain.EventThreadReadChanged, h.threadReadChanged)
	r.Handle(domain.EventThreadUpdated, h.threadUpdated)
}

type handlers struct {
	svc readmarker.Service
	idx Index
	log *zap.Logger
	now func() time.Time
}

func (h *handlers) hello(_ context.Context, data json.RawMessage) error {
	var ev domain.HelloEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	h.idx.Reset()
	h.log.Info("backend hello", zap.String("server_version", ev.ServerVersion))
	return nil
}

func (h *handlers) posted(_ context.Context, data json.RawMessage) error {
	var ev domain.PostedEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	m, err := ev.Message()
	if err != nil {
		return err
	}
	h.idx.Observe(m)
	return nil
}

func (h *handlers) postDeleted(_ context.Context, data json.RawMessage) error {
	var ev domain.PostDeletedEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	m, err := ev.Message()
	if err != nil {
		return err
	}
	h.idx.Forget(m.ChannelID, m.MessageID)
	return nil
}

func (h *handlers) multipleChannelsViewed(ctx context.Context, data json.RawMessage) error {
	var ev domain.ViewEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	h.svc.ChannelViewed(ctx, ev)
	return nil
}

func (h *handlers) channelViewed(ctx context.Context, data json.RawMessage) error {
	var ev domain.ChannelViewedEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	h.svc.ChannelViewed(ctx, ev.ViewEvent(h.now().UnixMilli()))
	return nil
}

func (h *handlers) threadReadChanged(ctx context.Context, data json.RawMessage) error {
	var ev domain.ThreadEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	h.svc.ThreadReadChanged(ctx, ev)
	return nil
}

func (h *handlers) threadUpdated(ctx context.Context, data json.RawMessage) error {
	var ev domain.ThreadUpdatedEvent
	if err := decode(data, &ev); err != nil {
		return err
	}
	h.svc.ThreadUpdated(ctx, ev)
	return nil
}

func decode(data json.RawMessage, dst interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload: %w", domain.ErrBadRequest)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode payload: %w: %w", err, domain.ErrBadRequest)
	}
	return validate.Struct(dst)
}
