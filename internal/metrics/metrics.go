package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SyncCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_cycles_total",
		Help: "Total sync cycles by result.",
	}, []string{"result"})
	SyncConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_consecutive_failures",
		Help: "Current consecutive failed sync cycles.",
	})
	MessagesMerged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_messages_merged_total",
		Help: "Total messages merged from sync responses.",
	})

	SendsOK = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_sends_ok_total",
		Help: "Total messages sent and confirmed.",
	})
	SendsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_sends_failed_total",
		Help: "Total sends rolled back after a server rejection.",
	})

	Heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_heartbeats_total",
		Help: "Total presence heartbeats by result.",
	}, []string{"result"})
)

func Register() {
	prometheus.MustRegister(
		SyncCycles, SyncConsecutiveFailures, MessagesMerged,
		SendsOK, SendsFailed,
		Heartbeats,
	)
}
