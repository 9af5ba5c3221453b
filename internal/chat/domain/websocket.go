package domain

// Action websocket request action
type Action string

const (
	// SubscribeConversations websocket action subscribe_conversations
	SubscribeConversations Action = "subscribe_conversations"
	// SubscribeMessages websocket action subscribe_messages
	SubscribeMessages Action = "subscribe_messages"
	// Unsubscribe websocket action unsubscribe
	Unsubscribe Action = "unsubscribe"
	// SendMessage websocket action send_message
	SendMessage Action = "send_message"

	// NotifyConversations pushed conversations snapshot
	NotifyConversations Action = "notify_conversations"
	// NotifyMessages pushed messages snapshot
	NotifyMessages Action = "notify_messages"
)

// WSRequest websocket Request
type WSRequest struct {
	Action         string `json:"action"`
	ConversationID string `json:"conversation_id"`
	RecipientEmail string `json:"recipient_email"`
	RecipientName  string `json:"recipient_name"`
	Kind           string `json:"type"`
	Content        string `json:"content"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}
