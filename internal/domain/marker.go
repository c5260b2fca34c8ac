package domain

import "time"

// Marker records which message currently carries the read-marker reaction in a conversation.
type Marker struct {
	ConversationID string    `json:"conversation_id" dynamodbav:"conversation_id"`
	MessageID      string    `json:"message_id" dynamodbav:"message_id"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at"`
}
