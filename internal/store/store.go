package store

import "sync"

// Store is the authoritative in-memory mirror of conversations, messages,
// presence and sync cursors. Mutations are copy-and-replace under the write
// lock and accessors hand out copies, so concurrent readers never observe a
// partially applied merge.
type Store struct {
	mu            sync.RWMutex
	conversations []Conversation // sorted descending by lastMessageAt
	messages      map[string][]Message // per conversation, ascending by timestamp
	presence      map[string]PresenceEntry
	cursors       map[string]int64 // per-conversation last-merged timestamp
	lastSync      int64            // global watermark, server-issued
}

// New creates an empty store.
func New() *Store {
	return &Store{
		messages: make(map[string][]Message),
		presence: make(map[string]PresenceEntry),
		cursors:  make(map[string]int64),
	}
}

// Conversations returns the conversation list, sorted by most recent activity.
func (s *Store) Conversations() []Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// Conversation returns a single conversation by id.
func (s *Store) Conversation(id string) (Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return Conversation{}, false
}

// Messages returns the message list for a conversation in timestamp order.
func (s *Store) Messages(conversationID string) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// Presence returns the latest presence entry for a user.
func (s *Store) Presence(userID string) (PresenceEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.presence[userID]
	return p, ok
}

// Cursor returns the sync cursor for a conversation.
func (s *Store) Cursor(conversationID string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cursors[conversationID]
	return c, ok
}

// Cursors returns a copy of all non-empty per-conversation cursors.
func (s *Store) Cursors() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int64, len(s.cursors))
	for id, ts := range s.cursors {
		out[id] = ts
	}
	return out
}

// LastSync returns the global sync watermark, zero if no cycle succeeded yet.
func (s *Store) LastSync() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSync
}

// UnreadTotal returns the sum of unread counts across all conversations.
func (s *Store) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, c := range s.conversations {
		total += c.UnreadCount
	}
	return total
}

// PresenceRoster derives the presence subscription list for the next sync
// request: participants of direct conversations excluding self, deduplicated
// preserving first-seen order, capped at max entries.
func (s *Store) PresenceRoster(selfID string, max int) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var roster []string
	for _, c := range s.conversations {
		if c.Type != ConversationDirect {
			continue
		}
		for _, pid := range c.ParticipantIDs {
			if pid == selfID {
				continue
			}
			if _, ok := seen[pid]; ok {
				continue
			}
			seen[pid] = struct{}{}
			roster = append(roster, pid)
			if len(roster) == max {
				return roster
			}
		}
	}
	return roster
}
