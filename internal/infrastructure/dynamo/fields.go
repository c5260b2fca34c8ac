package dynamo

// DynamoDB attribute names used in keys and update expressions.
const (
	fieldConversationID = "conversation_id"
	fieldMessageID      = "message_id"
	fieldUpdatedAt      = "updated_at"
)
