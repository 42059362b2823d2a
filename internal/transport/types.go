package transport

import "github.com/fieldreport/chatsync/internal/store"

// SyncRequest is the body of the batched differential sync call.
type SyncRequest struct {
	// LastSync is the global watermark from the previous cycle, zero on the
	// first cycle.
	LastSync int64 `json:"lastSync,omitempty"`
	// ActiveConversationID is a prioritization hint, not a filter.
	ActiveConversationID string `json:"activeConversationId,omitempty"`
	// ConversationCursors maps conversation id to the last merged message
	// timestamp.
	ConversationCursors map[string]int64 `json:"conversationCursors,omitempty"`
	// PresenceUserIDs lists up to 50 users whose presence should be returned.
	PresenceUserIDs []string `json:"presenceUserIds,omitempty"`
}

// SyncResponse is the batched differential sync result.
type SyncResponse struct {
	Conversations          []store.Conversation           `json:"conversations"`
	MessagesByConversation map[string][]store.Message     `json:"messagesByConversation"`
	PresenceByUser         map[string]store.PresenceEntry `json:"presenceByUser"`
	SyncTimestamp          int64                          `json:"syncTimestamp"`
}

// SendMessageRequest is the body of the send-message call.
type SendMessageRequest struct {
	Content  string         `json:"content"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// CreateConversationRequest is the body of the create-conversation call.
type CreateConversationRequest struct {
	Type           store.ConversationType `json:"type"`
	ParticipantIDs []string               `json:"participantIds"`
	Name           string                 `json:"name,omitempty"`
}
