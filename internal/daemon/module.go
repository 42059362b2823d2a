package daemon

import (
	"context"
	"net/http"
	"time"

	"github.com/fieldreport/chatsync/internal/api"
	"github.com/fieldreport/chatsync/internal/bus"
	"github.com/fieldreport/chatsync/internal/config"
	"github.com/fieldreport/chatsync/internal/lock"
	"github.com/fieldreport/chatsync/internal/logging"
	"github.com/fieldreport/chatsync/internal/metrics"
	"github.com/fieldreport/chatsync/internal/outbox"
	"github.com/fieldreport/chatsync/internal/presence"
	"github.com/fieldreport/chatsync/internal/scheduler"
	"github.com/fieldreport/chatsync/internal/session"
	"github.com/fieldreport/chatsync/internal/status"
	"github.com/fieldreport/chatsync/internal/store"
	intsync "github.com/fieldreport/chatsync/internal/sync"
	"github.com/fieldreport/chatsync/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks around a loaded config.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideLock,
			provideBus,
			provideStateMachine,
			provideSession,
			provideStore,
			provideTransport,
			provideCoordinator,
			provideScheduler,
			providePipeline,
			provideTracker,
			provideService,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath, cfg.UserID)
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Lock, error) {
	l, err := lock.Acquire(cfg.RuntimeDir)
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired", zap.String("dir", cfg.RuntimeDir))
	return l, nil
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideSession(cfg *config.Config) *session.Static {
	return session.NewStatic(cfg.UserID)
}

func provideStore() *store.Store {
	return store.New()
}

func provideTransport(cfg *config.Config) *transport.Client {
	return transport.NewClient(cfg.RemoteURL, cfg.AuthToken)
}

func provideCoordinator(st *store.Store, client *transport.Client, sess *session.Static, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *intsync.Coordinator {
	return intsync.NewCoordinator(st, client, sess, machine, b, logger)
}

func provideScheduler(coordinator *intsync.Coordinator, logger *zap.Logger) *scheduler.Scheduler {
	return scheduler.New(coordinator, scheduler.NewClock(), logger)
}

func providePipeline(st *store.Store, client *transport.Client, sess *session.Static, sched *scheduler.Scheduler, b *bus.Bus, logger *zap.Logger) *outbox.Pipeline {
	return outbox.NewPipeline(st, client, sess, sched, b, logger)
}

func provideTracker(cfg *config.Config, client *transport.Client, sess *session.Static, logger *zap.Logger) *presence.Tracker {
	return presence.NewTracker(client, sess, time.Duration(cfg.HeartbeatSeconds)*time.Second, logger)
}

func provideService(st *store.Store, client *transport.Client, pipeline *outbox.Pipeline, coordinator *intsync.Coordinator, sched *scheduler.Scheduler, logger *zap.Logger) *api.Service {
	return api.NewService(st, client, pipeline, coordinator, sched, logger)
}

func registerLifecycle(lc fx.Lifecycle, cfg *config.Config, lk *lock.Lock, machine *status.Machine, sched *scheduler.Scheduler, tracker *presence.Tracker, svc *api.Service, logger *zap.Logger) {
	var metricsSrv *http.Server
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			metrics.Register()
			if cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics server error", zap.Error(err))
					}
				}()
			}

			sched.Start()
			tracker.Start(context.Background())
			// One eager cycle so the mirror fills without waiting a full tick.
			svc.SyncNow()
			logger.Info("chatsync daemon started", zap.String("remote", cfg.RemoteURL))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			tracker.Stop()
			sched.Stop()
			// A cycle still in flight finishes and lands its result first;
			// Syncing -> Stopped is not a legal transition.
		wait:
			for machine.Transition(status.Stopped) != nil {
				select {
				case <-ctx.Done():
					logger.Warn("shutdown timed out waiting for the sync cycle",
						zap.String("state", string(machine.Current())))
					break wait
				case <-time.After(10 * time.Millisecond):
				}
			}
			if metricsSrv != nil {
				_ = metricsSrv.Shutdown(ctx)
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("chatsync daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
