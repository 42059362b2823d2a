package sync

import (
	"context"
	"sync"
	"time"

	"github.com/fieldreport/chatsync/internal/bus"
	"github.com/fieldreport/chatsync/internal/metrics"
	"github.com/fieldreport/chatsync/internal/scheduler"
	"github.com/fieldreport/chatsync/internal/session"
	"github.com/fieldreport/chatsync/internal/status"
	"github.com/fieldreport/chatsync/internal/store"
	"github.com/fieldreport/chatsync/internal/transport"
	"go.uber.org/zap"
)

// maxPresenceUsers caps the presence roster sent with each sync request.
const maxPresenceUsers = 50

// Remote is the slice of the transport client the coordinator needs.
type Remote interface {
	Sync(ctx context.Context, req *transport.SyncRequest) (*transport.SyncResponse, error)
}

// CycleStats is the payload of the sync.completed event.
type CycleStats struct {
	NewConversations int
	MergedMessages   int
	PresenceUpdated  int
}

// Coordinator executes one differential sync cycle at a time: it assembles a
// request from the store's cursors, calls the batched remote endpoint and
// merges the response. The status machine makes a cycle non-reentrant; a
// trigger arriving mid-cycle is dropped.
type Coordinator struct {
	store   *store.Store
	remote  Remote
	session session.Provider
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu     sync.RWMutex
	active string // focused conversation id, hint only
}

// NewCoordinator creates a new sync coordinator.
func NewCoordinator(st *store.Store, remote Remote, sess session.Provider, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		store:   st,
		remote:  remote,
		session: sess,
		machine: machine,
		bus:     b,
		logger:  logger,
	}
}

// SetActiveConversation records the focused conversation, passed to the
// server as a prioritization hint.
func (c *Coordinator) SetActiveConversation(id string) {
	c.mu.Lock()
	c.active = id
	c.mu.Unlock()
}

// ActiveConversation returns the focused conversation id, if any.
func (c *Coordinator) ActiveConversation() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// RunCycle performs one sync cycle. It returns scheduler.ErrSkipped when
// unauthenticated or when a cycle is already in flight, so a skip neither
// clears nor extends the failure streak. A transport or validation error is
// returned unmodified and nothing is merged: a failed cycle is all-or-nothing.
func (c *Coordinator) RunCycle(ctx context.Context) error {
	if !c.session.Authenticated() {
		c.logger.Debug("sync skipped, not authenticated")
		return scheduler.ErrSkipped
	}
	if err := c.machine.Transition(status.Syncing); err != nil {
		// A cycle is already in flight; drop this trigger.
		c.logger.Debug("sync trigger dropped", zap.String("state", string(c.machine.Current())))
		return scheduler.ErrSkipped
	}

	resp, err := c.remote.Sync(ctx, c.buildRequest())
	if err != nil {
		_ = c.machine.Transition(status.Backoff)
		metrics.SyncCycles.WithLabelValues("error").Inc()
		c.bus.Publish(bus.Event{Kind: "sync.failed", Timestamp: time.Now(), Payload: err.Error()})
		return err
	}

	stats := c.store.ApplySync(resp.Conversations, resp.MessagesByConversation, resp.PresenceByUser, resp.SyncTimestamp)
	_ = c.machine.Transition(status.Idle)

	metrics.SyncCycles.WithLabelValues("ok").Inc()
	metrics.MessagesMerged.Add(float64(stats.MergedMessages))

	c.publishChanges(resp, stats)
	return nil
}

// buildRequest assembles the differential request: the global watermark, the
// focus hint, all non-empty per-conversation cursors and the capped presence
// roster of direct-conversation peers.
func (c *Coordinator) buildRequest() *transport.SyncRequest {
	return &transport.SyncRequest{
		LastSync:             c.store.LastSync(),
		ActiveConversationID: c.ActiveConversation(),
		ConversationCursors:  c.store.Cursors(),
		PresenceUserIDs:      c.store.PresenceRoster(c.session.UserID(), maxPresenceUsers),
	}
}

// publishChanges notifies bus subscribers about what the merge touched.
func (c *Coordinator) publishChanges(resp *transport.SyncResponse, stats store.ApplyStats) {
	now := time.Now()
	for _, conv := range resp.Conversations {
		c.bus.Publish(bus.Event{Kind: "conversation.updated", Timestamp: now, Payload: conv.ID})
	}
	for convID, batch := range resp.MessagesByConversation {
		for _, m := range batch {
			c.bus.Publish(bus.Event{
				Kind:      "message.upserted",
				Timestamp: now,
				Payload:   map[string]string{"conversation_id": convID, "message_id": m.ServerID},
			})
		}
	}
	if len(resp.PresenceByUser) > 0 {
		users := make([]string, 0, len(resp.PresenceByUser))
		for userID := range resp.PresenceByUser {
			users = append(users, userID)
		}
		c.bus.Publish(bus.Event{Kind: "presence.updated", Timestamp: now, Payload: users})
	}
	c.bus.Publish(bus.Event{
		Kind:      "sync.completed",
		Timestamp: now,
		Payload: CycleStats{
			NewConversations: stats.NewConversations,
			MergedMessages:   stats.MergedMessages,
			PresenceUpdated:  stats.PresenceUpdated,
		},
	})
	c.logger.Info("sync cycle completed",
		zap.Int("new_conversations", stats.NewConversations),
		zap.Int("merged_messages", stats.MergedMessages),
		zap.Int("presence_updated", stats.PresenceUpdated))
}
