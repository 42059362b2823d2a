package api

import (
	"context"
	"fmt"

	"github.com/fieldreport/chatsync/internal/outbox"
	"github.com/fieldreport/chatsync/internal/scheduler"
	"github.com/fieldreport/chatsync/internal/store"
	syncpkg "github.com/fieldreport/chatsync/internal/sync"
	"github.com/fieldreport/chatsync/internal/transport"
	"go.uber.org/zap"
)

// Remote is the slice of the transport client the facade needs for
// conversation CRUD. Message sending goes through the pipeline.
type Remote interface {
	ListConversations(ctx context.Context) ([]store.Conversation, error)
	GetConversation(ctx context.Context, id string) (store.Conversation, error)
	CreateConversation(ctx context.Context, req *transport.CreateConversationRequest) (store.Conversation, error)
	GetMessages(ctx context.Context, conversationID string) ([]store.Message, error)
	MarkAsRead(ctx context.Context, conversationID string) error
	GetOpenConversation(ctx context.Context) (store.Conversation, error)
	AddParticipant(ctx context.Context, conversationID, userID string) (store.Conversation, error)
	RemoveParticipant(ctx context.Context, conversationID, userID string) (store.Conversation, error)
}

// Service is the surface the host application talks to. Reads come straight
// from the store; writes go to the remote service and their results are
// merged back through the same primitives the sync cycle uses.
type Service struct {
	store       *store.Store
	remote      Remote
	pipeline    *outbox.Pipeline
	coordinator *syncpkg.Coordinator
	scheduler   *scheduler.Scheduler
	logger      *zap.Logger
}

// NewService creates the facade.
func NewService(st *store.Store, remote Remote, pipeline *outbox.Pipeline, coordinator *syncpkg.Coordinator, sched *scheduler.Scheduler, logger *zap.Logger) *Service {
	return &Service{
		store:       st,
		remote:      remote,
		pipeline:    pipeline,
		coordinator: coordinator,
		scheduler:   sched,
		logger:      logger,
	}
}

// Conversations returns the local conversation list, most recent first.
func (s *Service) Conversations() []store.Conversation {
	return s.store.Conversations()
}

// Conversation returns one conversation from the local mirror.
func (s *Service) Conversation(id string) (store.Conversation, bool) {
	return s.store.Conversation(id)
}

// Messages returns the local message list for a conversation.
func (s *Service) Messages(conversationID string) []store.Message {
	return s.store.Messages(conversationID)
}

// SetActiveConversation records which conversation is focused, "" for none.
// The scheduler speeds up polling and the next sync request carries the id
// as a prioritization hint.
func (s *Service) SetActiveConversation(id string) {
	s.coordinator.SetActiveConversation(id)
	s.scheduler.SetFocusedConversation(id)
}

// SetVisible forwards the host environment's visibility signal.
func (s *Service) SetVisible(visible bool) {
	s.scheduler.SetVisible(visible)
}

// Send sends a message with an optimistic local echo.
func (s *Service) Send(ctx context.Context, conversationID, content, messageType string, metadata map[string]any) (store.Message, error) {
	return s.pipeline.Send(ctx, conversationID, content, messageType, metadata)
}

// CreateConversation creates a conversation remotely and mirrors it locally.
func (s *Service) CreateConversation(ctx context.Context, typ store.ConversationType, participantIDs []string, name string) (store.Conversation, error) {
	conv, err := s.remote.CreateConversation(ctx, &transport.CreateConversationRequest{
		Type:           typ,
		ParticipantIDs: participantIDs,
		Name:           name,
	})
	if err != nil {
		return store.Conversation{}, fmt.Errorf("create conversation: %w", err)
	}
	s.store.UpsertConversation(conv)
	return conv, nil
}

// RefreshConversations fetches the full conversation list and merges it.
func (s *Service) RefreshConversations(ctx context.Context) error {
	convs, err := s.remote.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, c := range convs {
		s.store.UpsertConversation(c)
	}
	return nil
}

// LoadMessages performs a full history load for one conversation and merges
// it, then returns the merged local list.
func (s *Service) LoadMessages(ctx context.Context, conversationID string) ([]store.Message, error) {
	msgs, err := s.remote.GetMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	s.store.MergeMessages(conversationID, msgs)
	return s.store.Messages(conversationID), nil
}

// MarkAsRead clears the unread count remotely and locally.
func (s *Service) MarkAsRead(ctx context.Context, conversationID string) error {
	if err := s.remote.MarkAsRead(ctx, conversationID); err != nil {
		return fmt.Errorf("mark as read: %w", err)
	}
	s.store.MarkRead(conversationID)
	return nil
}

// OpenConversation fetches the default open channel and mirrors it.
func (s *Service) OpenConversation(ctx context.Context) (store.Conversation, error) {
	conv, err := s.remote.GetOpenConversation(ctx)
	if err != nil {
		return store.Conversation{}, fmt.Errorf("get open conversation: %w", err)
	}
	s.store.UpsertConversation(conv)
	return conv, nil
}

// AddParticipant adds a user to a conversation and mirrors the result.
func (s *Service) AddParticipant(ctx context.Context, conversationID, userID string) error {
	conv, err := s.remote.AddParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("add participant: %w", err)
	}
	s.store.UpsertConversation(conv)
	return nil
}

// RemoveParticipant removes a user from a conversation and mirrors the result.
func (s *Service) RemoveParticipant(ctx context.Context, conversationID, userID string) error {
	conv, err := s.remote.RemoveParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	s.store.UpsertConversation(conv)
	return nil
}

// IsOnline reports the last synced online state for a user.
func (s *Service) IsOnline(userID string) bool {
	p, ok := s.store.Presence(userID)
	return ok && p.IsOnline
}

// LastSeen returns the last-seen timestamp for a user, if known.
func (s *Service) LastSeen(userID string) (int64, bool) {
	p, ok := s.store.Presence(userID)
	if !ok {
		return 0, false
	}
	return p.LastSeen, true
}

// UnreadTotal returns the aggregate unread count across conversations.
func (s *Service) UnreadTotal() int {
	return s.store.UnreadTotal()
}

// SyncNow requests one immediate sync cycle. Dropped if one is in flight.
func (s *Service) SyncNow() {
	s.scheduler.TriggerNow()
}
