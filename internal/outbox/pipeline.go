package outbox

import (
	"context"
	"time"

	"github.com/fieldreport/chatsync/internal/bus"
	"github.com/fieldreport/chatsync/internal/metrics"
	"github.com/fieldreport/chatsync/internal/session"
	"github.com/fieldreport/chatsync/internal/store"
	"github.com/fieldreport/chatsync/internal/transport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// resyncDelay is how long after a confirmed send the out-of-band sync fires,
// so the next scheduled poll does not have to be waited for.
const resyncDelay = 250 * time.Millisecond

// Sender is the slice of the transport client the pipeline needs.
type Sender interface {
	SendMessage(ctx context.Context, conversationID string, req *transport.SendMessageRequest) (store.Message, error)
}

// Resyncer schedules the post-send out-of-band sync.
type Resyncer interface {
	TriggerAfter(d time.Duration)
}

// Pipeline sends messages with an optimistic local echo: the pending entry is
// visible to the sender before any network round trip, then reconciled with
// the canonical server record or removed on failure. Concurrent sends are
// independent and may reconcile out of submission order.
type Pipeline struct {
	store   *store.Store
	sender  Sender
	session session.Provider
	resync  Resyncer
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewPipeline creates a message pipeline.
func NewPipeline(st *store.Store, sender Sender, sess session.Provider, resync Resyncer, b *bus.Bus, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:   st,
		sender:  sender,
		session: sess,
		resync:  resync,
		bus:     b,
		logger:  logger,
	}
}

// Send appends a pending echo, posts the message and reconciles the result.
// A failed send removes the echo entirely and returns the error for UI-level
// retry; no failed placeholder is kept.
func (p *Pipeline) Send(ctx context.Context, conversationID, content, messageType string, metadata map[string]any) (store.Message, error) {
	localID := uuid.New()
	pending := store.Message{
		LocalID:        localID,
		ConversationID: conversationID,
		SenderID:       p.session.UserID(),
		Content:        content,
		MessageType:    messageType,
		Metadata:       metadata,
		Timestamp:      time.Now().UnixMilli(),
	}
	p.store.AppendPending(pending)
	p.bus.Publish(bus.Event{
		Kind:      "message.upserted",
		Timestamp: time.Now(),
		Payload:   map[string]string{"conversation_id": conversationID, "message_id": localID.String()},
	})

	canonical, err := p.sender.SendMessage(ctx, conversationID, &transport.SendMessageRequest{
		Content:  content,
		Type:     messageType,
		Metadata: metadata,
	})
	if err != nil {
		p.store.RemovePending(conversationID, localID)
		metrics.SendsFailed.Inc()
		p.logger.Warn("send failed, optimistic echo rolled back",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
			zap.String("local_id", localID.String()))
		p.bus.Publish(bus.Event{
			Kind:      "message.send_failed",
			Timestamp: time.Now(),
			Payload:   map[string]string{"local_id": localID.String(), "error": err.Error()},
		})
		return store.Message{}, err
	}

	// The store backfills sender id and metadata the server record omits;
	// mirror that here so the caller sees what readers see.
	p.store.ConfirmPending(conversationID, localID, canonical)
	canonical.LocalID = localID
	canonical.State = store.StateConfirmed
	if canonical.ConversationID == "" {
		canonical.ConversationID = conversationID
	}
	if canonical.SenderID == "" {
		canonical.SenderID = pending.SenderID
	}
	if canonical.Metadata == nil {
		canonical.Metadata = metadata
	}

	metrics.SendsOK.Inc()
	p.bus.Publish(bus.Event{
		Kind:      "message.upserted",
		Timestamp: time.Now(),
		Payload:   map[string]string{"conversation_id": conversationID, "message_id": canonical.ServerID},
	})
	p.resync.TriggerAfter(resyncDelay)
	return canonical, nil
}
