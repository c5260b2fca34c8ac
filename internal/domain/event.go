package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Push event names emitted by the backend websocket.
const (
	EventHello                  = "hello"
	EventPosted                 = "posted"
	EventPostDeleted            = "post_deleted"
	EventChannelViewed          = "channel_viewed"
	EventMultipleChannelsViewed = "multiple_channels_viewed"
	EventThreadReadChanged      = "thread_read_changed"
	EventThreadUpdated          = "thread_updated"
)

// ConversationTime pairs a conversation with the moment it was last viewed (epoch ms).
type ConversationTime struct {
	ConversationID string `validate:"required"`
	ViewedAt       int64
}

// ChannelTimes is the channel_times object of a view event, kept in document order.
type ChannelTimes []ConversationTime

func (ct *ChannelTimes) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*ct = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("channel_times must be an object: %w", ErrBadRequest)
	}
	var out ChannelTimes
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var viewedAt int64
		if err := dec.Decode(&viewedAt); err != nil {
			return fmt.Errorf("channel_times[%s]: %w", key, err)
		}
		out = append(out, ConversationTime{ConversationID: key, ViewedAt: viewedAt})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*ct = out
	return nil
}

// ViewEvent reports that one or more conversations were read.
type ViewEvent struct {
	ChannelTimes ChannelTimes `json:"channel_times" validate:"required,min=1,dive"`
}

// Trigger returns the entry the reconciler acts on: the first one in the event.
func (e ViewEvent) Trigger() (ConversationTime, bool) {
	if len(e.ChannelTimes) == 0 {
		return ConversationTime{}, false
	}
	return e.ChannelTimes[0], true
}

// ChannelViewedEvent is the single-channel form of a view notification.
type ChannelViewedEvent struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

// ViewEvent converts the single-channel form into a one-entry ViewEvent.
func (e ChannelViewedEvent) ViewEvent(viewedAt int64) ViewEvent {
	return ViewEvent{ChannelTimes: ChannelTimes{{ConversationID: e.ChannelID, ViewedAt: viewedAt}}}
}

// ThreadEvent reports that the unread counters of a thread changed.
type ThreadEvent struct {
	ThreadID               string `json:"thread_id" validate:"required"`
	ChannelID              string `json:"channel_id"`
	Timestamp              int64  `json:"timestamp"`
	UnreadMentions         int64  `json:"unread_mentions"`
	UnreadReplies          int64  `json:"unread_replies"`
	PreviousUnreadMentions int64  `json:"previous_unread_mentions"`
	PreviousUnreadReplies  int64  `json:"previous_unread_replies"`
}

// ThreadUpdatedEvent carries the serialized thread; only its arrival matters.
type ThreadUpdatedEvent struct {
	Thread string `json:"thread"`
}

// PostedEvent carries a new message serialized as a JSON string.
type PostedEvent struct {
	Post string `json:"post" validate:"required"`
}

// Message decodes the embedded post.
func (e PostedEvent) Message() (Message, error) {
	var m Message
	if err := json.Unmarshal([]byte(e.Post), &m); err != nil {
		return Message{}, fmt.Errorf("decode posted message: %w", err)
	}
	if m.MessageID == "" || m.ChannelID == "" {
		return Message{}, fmt.Errorf("posted message without id: %w", ErrBadRequest)
	}
	return m, nil
}

// PostDeletedEvent carries the removed message serialized as a JSON string.
type PostDeletedEvent = PostedEvent

// HelloEvent is sent by the server right after the websocket handshake.
type HelloEvent struct {
	ServerVersion string `json:"server_version"`
}
