package store

import "github.com/google/uuid"

// ConversationType classifies a conversation.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
	ConversationOpen   ConversationType = "open"
)

// Conversation represents a synced conversation. Conversations are created on
// first sync or by explicit creation and never deleted locally.
type Conversation struct {
	ID             string           `json:"id"`
	Type           ConversationType `json:"type"`
	Name           string           `json:"name,omitempty"`
	ParticipantIDs []string         `json:"participantIds"`
	UnreadCount    int              `json:"unreadCount"`
	LastMessageAt  int64            `json:"lastMessageAt"`
	CreatedAt      int64            `json:"createdAt"`
}

// MessageState tags a message's reconciliation state.
type MessageState string

const (
	// StatePending marks an optimistic local echo awaiting the server record.
	StatePending MessageState = "pending"
	// StateConfirmed marks a message backed by a canonical server record.
	StateConfirmed MessageState = "confirmed"
	// StateFailed marks a send the server rejected.
	StateFailed MessageState = "failed"
)

// Message represents a message in a conversation. Every message carries a
// collision-safe LocalID; ServerID is set once the canonical record is known
// and is immutable afterwards.
type Message struct {
	LocalID        uuid.UUID      `json:"-"`
	ServerID       string         `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Content        string         `json:"content"`
	MessageType    string         `json:"type"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      int64          `json:"timestamp"`
	State          MessageState   `json:"-"`
}

// PresenceEntry is the latest known presence for a user. Entries are
// overwritten wholesale on every sync, last write wins.
type PresenceEntry struct {
	IsOnline bool  `json:"isOnline"`
	LastSeen int64 `json:"lastSeen"`
}

// ApplyStats summarizes what one sync merge changed.
type ApplyStats struct {
	NewConversations int
	MergedMessages   int
	PresenceUpdated  int
}
