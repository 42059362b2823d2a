package presence

import (
	"context"
	"time"

	"github.com/fieldreport/chatsync/internal/metrics"
	"github.com/fieldreport/chatsync/internal/session"
	"go.uber.org/zap"
)

// DefaultInterval is the heartbeat cadence for a session's lifetime.
const DefaultInterval = 2 * time.Minute

// Heartbeater is the slice of the transport client the tracker needs.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// Tracker announces this client's liveness on a fixed interval. Heartbeat
// failures are logged and dropped: no backoff, nothing surfaced. Presence
// state for other users arrives only through sync responses; the tracker
// never reads any.
type Tracker struct {
	remote   Heartbeater
	session  session.Provider
	interval time.Duration
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewTracker creates a tracker. A non-positive interval means DefaultInterval.
func NewTracker(remote Heartbeater, sess session.Provider, interval time.Duration, logger *zap.Logger) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		remote:   remote,
		session:  sess,
		interval: interval,
		logger:   logger,
	}
}

// Start sends one immediate heartbeat and begins the repeating loop.
func (t *Tracker) Start(ctx context.Context) {
	ctx, t.cancel = context.WithCancel(ctx)
	go t.loop(ctx)
}

// Stop halts the heartbeat loop.
func (t *Tracker) Stop() {
	if t.cancel != nil {
		t.cancel()
	}
}

func (t *Tracker) loop(ctx context.Context) {
	t.beat(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.beat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (t *Tracker) beat(ctx context.Context) {
	if !t.session.Authenticated() {
		return
	}
	if err := t.remote.Heartbeat(ctx); err != nil {
		metrics.Heartbeats.WithLabelValues("error").Inc()
		t.logger.Warn("heartbeat failed", zap.Error(err))
		return
	}
	metrics.Heartbeats.WithLabelValues("ok").Inc()
}
