package domain

type Reaction struct {
	UserID    string `json:"user_id"`
	MessageID string `json:"post_id"`
	EmojiName string `json:"emoji_name"`
	CreateAt  int64  `json:"create_at"`
}

type MessageMetadata struct {
	Reactions []Reaction `json:"reactions,omitempty"`
}

// Message is a post as returned by the backend. CreateAt is in epoch milliseconds.
type Message struct {
	MessageID string          `json:"id"`
	UserID    string          `json:"user_id"`
	ChannelID string          `json:"channel_id"`
	RootID    string          `json:"root_id"`
	CreateAt  int64           `json:"create_at"`
	Metadata  MessageMetadata `json:"metadata"`
}

// AuthoredBy reports whether userID wrote the message.
func (m Message) AuthoredBy(userID string) bool {
	return m.UserID == userID
}

// ReactionsBy returns the reactions userID placed on the message with the given emoji.
func (m Message) ReactionsBy(userID, emoji string) []Reaction {
	var out []Reaction
	for _, r := range m.Metadata.Reactions {
		if r.UserID == userID && r.EmojiName == emoji {
			out = append(out, r)
		}
	}
	return out
}
