package store

import (
	"sort"

	"github.com/google/uuid"
)

// ApplySync merges one differential sync response into the store as a single
// atomic operation: conversation field merges, per-conversation message
// batches, presence overwrites, cursor advances and the global watermark all
// land under one write lock.
func (s *Store) ApplySync(convs []Conversation, messages map[string][]Message, presence map[string]PresenceEntry, syncTimestamp int64) ApplyStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats ApplyStats
	for _, rc := range convs {
		if s.upsertConversationLocked(rc) {
			stats.NewConversations++
		}
	}
	for convID, batch := range messages {
		stats.MergedMessages += s.mergeMessagesLocked(convID, batch)
	}
	for userID, entry := range presence {
		s.presence[userID] = entry
		stats.PresenceUpdated++
	}
	if syncTimestamp != 0 {
		s.lastSync = syncTimestamp
	}
	return stats
}

// UpsertConversation merges a single conversation record, e.g. the result of
// an explicit create or participant change.
func (s *Store) UpsertConversation(c Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertConversationLocked(c)
}

// MergeMessages merges a message batch for one conversation outside a sync
// cycle (full history loads). Returns how many messages were new.
func (s *Store) MergeMessages(conversationID string, batch []Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeMessagesLocked(conversationID, batch)
}

// upsertConversationLocked inserts or shallow-merges a conversation and
// re-sorts the list. Reports whether the id was new. Remote fields win;
// local fields the remote record does not carry are kept.
func (s *Store) upsertConversationLocked(rc Conversation) bool {
	for i, lc := range s.conversations {
		if lc.ID != rc.ID {
			continue
		}
		merged := lc
		if rc.Type != "" {
			merged.Type = rc.Type
		}
		if rc.Name != "" {
			merged.Name = rc.Name
		}
		if rc.ParticipantIDs != nil {
			merged.ParticipantIDs = append([]string(nil), rc.ParticipantIDs...)
		}
		if rc.LastMessageAt != 0 {
			merged.LastMessageAt = rc.LastMessageAt
		}
		if rc.CreatedAt != 0 {
			merged.CreatedAt = rc.CreatedAt
		}
		merged.UnreadCount = rc.UnreadCount

		next := make([]Conversation, len(s.conversations))
		copy(next, s.conversations)
		next[i] = merged
		sortConversations(next)
		s.conversations = next
		return false
	}

	next := make([]Conversation, 0, len(s.conversations)+1)
	next = append(next, s.conversations...)
	next = append(next, rc)
	sortConversations(next)
	s.conversations = next
	return true
}

// mergeMessagesLocked merges an incoming batch into one conversation's list.
// A conversation with no local list adopts the batch; otherwise already-seen
// canonical ids are filtered out and the remainder appended, so unconfirmed
// optimistic entries survive. The list is re-sorted ascending and the cursor
// advanced to the newest timestamp in the batch, never backward.
func (s *Store) mergeMessagesLocked(conversationID string, batch []Message) int {
	if len(batch) == 0 {
		return 0
	}

	local := s.messages[conversationID]

	seen := make(map[string]struct{}, len(local))
	for _, m := range local {
		if m.ServerID != "" {
			seen[m.ServerID] = struct{}{}
		}
	}

	next := make([]Message, len(local), len(local)+len(batch))
	copy(next, local)

	merged := 0
	var maxTS int64
	for _, m := range batch {
		if m.Timestamp > maxTS {
			maxTS = m.Timestamp
		}
		if m.ServerID != "" {
			if _, dup := seen[m.ServerID]; dup {
				continue
			}
			seen[m.ServerID] = struct{}{}
		}
		if m.LocalID == uuid.Nil {
			m.LocalID = uuid.New()
		}
		if m.State == "" {
			m.State = StateConfirmed
		}
		if m.ConversationID == "" {
			m.ConversationID = conversationID
		}
		next = append(next, m)
		merged++
	}

	sortMessages(next)
	s.messages[conversationID] = next

	if maxTS > s.cursors[conversationID] {
		s.cursors[conversationID] = maxTS
	}
	return merged
}

// AppendPending appends an optimistic local echo to a conversation.
func (s *Store) AppendPending(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.State = StatePending
	local := s.messages[m.ConversationID]
	next := make([]Message, len(local), len(local)+1)
	copy(next, local)
	next = append(next, m)
	sortMessages(next)
	s.messages[m.ConversationID] = next
}

// ConfirmPending replaces the pending entry matched by localID with the
// canonical server record. Sender id and attachment metadata supplied locally
// are kept when the server record omits them, and the parent conversation's
// lastMessageAt is bumped. If a sync cycle already merged the canonical
// record the echo is removed instead, so the server id never appears twice.
// Reports whether a pending entry was found.
func (s *Store) ConfirmPending(conversationID string, localID uuid.UUID, canonical Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.messages[conversationID]
	for i, m := range local {
		if m.LocalID != localID {
			continue
		}
		if canonical.ServerID != "" && hasServerID(local, canonical.ServerID) {
			next := make([]Message, 0, len(local)-1)
			next = append(next, local[:i]...)
			next = append(next, local[i+1:]...)
			s.messages[conversationID] = next
			s.bumpConversationLocked(conversationID, canonical.Timestamp)
			return true
		}
		canonical.LocalID = localID
		canonical.State = StateConfirmed
		if canonical.ConversationID == "" {
			canonical.ConversationID = conversationID
		}
		if canonical.SenderID == "" {
			canonical.SenderID = m.SenderID
		}
		if canonical.Metadata == nil {
			canonical.Metadata = m.Metadata
		}

		next := make([]Message, len(local))
		copy(next, local)
		next[i] = canonical
		sortMessages(next)
		s.messages[conversationID] = next

		s.bumpConversationLocked(conversationID, canonical.Timestamp)
		return true
	}
	return false
}

func hasServerID(msgs []Message, serverID string) bool {
	for _, m := range msgs {
		if m.ServerID == serverID {
			return true
		}
	}
	return false
}

// RemovePending removes an optimistic entry entirely, rolling back a failed
// send. Reports whether an entry was removed.
func (s *Store) RemovePending(conversationID string, localID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.messages[conversationID]
	for i, m := range local {
		if m.LocalID != localID {
			continue
		}
		next := make([]Message, 0, len(local)-1)
		next = append(next, local[:i]...)
		next = append(next, local[i+1:]...)
		s.messages[conversationID] = next
		return true
	}
	return false
}

// MarkRead zeroes the local unread count for a conversation.
func (s *Store) MarkRead(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.conversations {
		if c.ID != conversationID {
			continue
		}
		next := make([]Conversation, len(s.conversations))
		copy(next, s.conversations)
		next[i].UnreadCount = 0
		s.conversations = next
		return
	}
}

func (s *Store) bumpConversationLocked(conversationID string, ts int64) {
	for i, c := range s.conversations {
		if c.ID != conversationID || c.LastMessageAt >= ts {
			continue
		}
		next := make([]Conversation, len(s.conversations))
		copy(next, s.conversations)
		next[i].LastMessageAt = ts
		sortConversations(next)
		s.conversations = next
		return
	}
}

// sortConversations orders by lastMessageAt descending, falling back to
// createdAt; conversations with neither sort last.
func sortConversations(convs []Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return conversationSortKey(convs[i]) > conversationSortKey(convs[j])
	})
}

func conversationSortKey(c Conversation) int64 {
	if c.LastMessageAt != 0 {
		return c.LastMessageAt
	}
	return c.CreatedAt
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
}
