package api

import (
	"context"
	"errors"
	"testing"

	"github.com/fieldreport/chatsync/internal/bus"
	"github.com/fieldreport/chatsync/internal/outbox"
	"github.com/fieldreport/chatsync/internal/scheduler"
	"github.com/fieldreport/chatsync/internal/session"
	"github.com/fieldreport/chatsync/internal/status"
	"github.com/fieldreport/chatsync/internal/store"
	syncpkg "github.com/fieldreport/chatsync/internal/sync"
	"github.com/fieldreport/chatsync/internal/transport"
	"go.uber.org/zap"
)

// fakeRemote returns canned conversation CRUD results.
type fakeRemote struct {
	conversations []store.Conversation
	messages      []store.Message
	open          store.Conversation
	created       store.Conversation
	err           error
	readCalls     []string
}

func (f *fakeRemote) ListConversations(context.Context) ([]store.Conversation, error) {
	return f.conversations, f.err
}

func (f *fakeRemote) GetConversation(_ context.Context, id string) (store.Conversation, error) {
	for _, c := range f.conversations {
		if c.ID == id {
			return c, f.err
		}
	}
	return store.Conversation{}, f.err
}

func (f *fakeRemote) CreateConversation(_ context.Context, req *transport.CreateConversationRequest) (store.Conversation, error) {
	if f.err != nil {
		return store.Conversation{}, f.err
	}
	f.created = store.Conversation{
		ID: "conv-new", Type: req.Type, Name: req.Name,
		ParticipantIDs: req.ParticipantIDs, CreatedAt: 100,
	}
	return f.created, nil
}

func (f *fakeRemote) GetMessages(context.Context, string) ([]store.Message, error) {
	return f.messages, f.err
}

func (f *fakeRemote) MarkAsRead(_ context.Context, conversationID string) error {
	f.readCalls = append(f.readCalls, conversationID)
	return f.err
}

func (f *fakeRemote) GetOpenConversation(context.Context) (store.Conversation, error) {
	return f.open, f.err
}

func (f *fakeRemote) AddParticipant(_ context.Context, conversationID, userID string) (store.Conversation, error) {
	c, _ := f.GetConversation(context.Background(), conversationID)
	c.ParticipantIDs = append(c.ParticipantIDs, userID)
	return c, f.err
}

func (f *fakeRemote) RemoveParticipant(_ context.Context, conversationID, _ string) (store.Conversation, error) {
	c, _ := f.GetConversation(context.Background(), conversationID)
	return c, f.err
}

type noopSyncRemote struct{}

func (noopSyncRemote) Sync(context.Context, *transport.SyncRequest) (*transport.SyncResponse, error) {
	return &transport.SyncResponse{SyncTimestamp: 1}, nil
}

type noopSender struct{}

func (noopSender) SendMessage(_ context.Context, _ string, req *transport.SendMessageRequest) (store.Message, error) {
	return store.Message{ServerID: "srv-1", Content: req.Content, Timestamp: 1}, nil
}

func newService(remote Remote) (*Service, *store.Store, *syncpkg.Coordinator) {
	st := store.New()
	b := bus.New()
	sess := session.NewStatic("me")
	logger := zap.NewNop()
	coordinator := syncpkg.NewCoordinator(st, noopSyncRemote{}, sess, status.NewMachine(b), b, logger)
	sched := scheduler.New(coordinator, scheduler.NewClock(), logger)
	pipeline := outbox.NewPipeline(st, noopSender{}, sess, sched, b, logger)
	return NewService(st, remote, pipeline, coordinator, sched, logger), st, coordinator
}

func TestCreateConversationMirrorsLocally(t *testing.T) {
	svc, st, _ := newService(&fakeRemote{})

	conv, err := svc.CreateConversation(context.Background(), store.ConversationGroup, []string{"me", "u-2"}, "Ops")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if conv.ID != "conv-new" || conv.Name != "Ops" {
		t.Errorf("conv = %+v", conv)
	}
	if _, ok := st.Conversation("conv-new"); !ok {
		t.Error("created conversation not mirrored in store")
	}
}

func TestMarkAsReadClearsLocalUnread(t *testing.T) {
	remote := &fakeRemote{}
	svc, st, _ := newService(remote)
	st.UpsertConversation(store.Conversation{ID: "c1", UnreadCount: 4})

	if err := svc.MarkAsRead(context.Background(), "c1"); err != nil {
		t.Fatalf("MarkAsRead() error = %v", err)
	}
	if len(remote.readCalls) != 1 || remote.readCalls[0] != "c1" {
		t.Errorf("remote calls = %v", remote.readCalls)
	}
	if got := svc.UnreadTotal(); got != 0 {
		t.Errorf("UnreadTotal() = %d, want 0", got)
	}
}

func TestMarkAsReadFailureKeepsLocalUnread(t *testing.T) {
	remote := &fakeRemote{err: errors.New("down")}
	svc, st, _ := newService(remote)
	st.UpsertConversation(store.Conversation{ID: "c1", UnreadCount: 4})

	if err := svc.MarkAsRead(context.Background(), "c1"); err == nil {
		t.Fatal("MarkAsRead() error = nil, want remote failure")
	}
	if got := svc.UnreadTotal(); got != 4 {
		t.Errorf("UnreadTotal() = %d, want 4 (unchanged)", got)
	}
}

func TestLoadMessagesMergesHistory(t *testing.T) {
	remote := &fakeRemote{messages: []store.Message{
		{ServerID: "m2", Timestamp: 20}, {ServerID: "m1", Timestamp: 10},
	}}
	svc, st, _ := newService(remote)
	st.MergeMessages("c1", []store.Message{{ServerID: "m1", Timestamp: 10}})

	msgs, err := svc.LoadMessages(context.Background(), "c1")
	if err != nil {
		t.Fatalf("LoadMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2 (m1 deduplicated)", len(msgs))
	}
	if msgs[0].ServerID != "m1" || msgs[1].ServerID != "m2" {
		t.Errorf("order = %s, %s; want m1, m2", msgs[0].ServerID, msgs[1].ServerID)
	}
}

func TestOpenConversationMirrored(t *testing.T) {
	remote := &fakeRemote{open: store.Conversation{ID: "open-1", Type: store.ConversationOpen, CreatedAt: 5}}
	svc, st, _ := newService(remote)

	conv, err := svc.OpenConversation(context.Background())
	if err != nil {
		t.Fatalf("OpenConversation() error = %v", err)
	}
	if conv.Type != store.ConversationOpen {
		t.Errorf("type = %s, want open", conv.Type)
	}
	if _, ok := st.Conversation("open-1"); !ok {
		t.Error("open channel not mirrored in store")
	}
}

func TestAddParticipantMirrorsResult(t *testing.T) {
	remote := &fakeRemote{conversations: []store.Conversation{
		{ID: "c1", Type: store.ConversationGroup, ParticipantIDs: []string{"me"}, CreatedAt: 5},
	}}
	svc, st, _ := newService(remote)
	st.UpsertConversation(remote.conversations[0])

	if err := svc.AddParticipant(context.Background(), "c1", "u-9"); err != nil {
		t.Fatalf("AddParticipant() error = %v", err)
	}
	c, _ := st.Conversation("c1")
	if len(c.ParticipantIDs) != 2 {
		t.Errorf("participants = %v, want me + u-9", c.ParticipantIDs)
	}
}

func TestPresenceLookups(t *testing.T) {
	svc, st, _ := newService(&fakeRemote{})
	st.ApplySync(nil, nil, map[string]store.PresenceEntry{
		"u-2": {IsOnline: true, LastSeen: 77},
	}, 1)

	if !svc.IsOnline("u-2") {
		t.Error("IsOnline(u-2) = false, want true")
	}
	if svc.IsOnline("u-404") {
		t.Error("IsOnline(u-404) = true, want false")
	}
	if ts, ok := svc.LastSeen("u-2"); !ok || ts != 77 {
		t.Errorf("LastSeen(u-2) = %d,%v; want 77,true", ts, ok)
	}
	if _, ok := svc.LastSeen("u-404"); ok {
		t.Error("LastSeen(u-404) reported known")
	}
}

func TestSetActiveConversationPropagatesHint(t *testing.T) {
	svc, _, coordinator := newService(&fakeRemote{})
	svc.SetActiveConversation("c7")
	if got := coordinator.ActiveConversation(); got != "c7" {
		t.Errorf("coordinator hint = %q, want c7", got)
	}
}
