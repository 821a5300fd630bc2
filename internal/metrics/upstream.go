package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Upstream = UpstreamExporter{
	connects: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upstream",
			Name:      "connects_total",
			Help:      "How many upstream connection attempts were made.",
		},
		[]string{"status"},
	),
	disconnects: promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upstream",
			Name:      "disconnects_total",
			Help:      "Why upstream connections have been closed.",
		},
		[]string{"reason"},
	),
	heartbeats: promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upstream",
			Name:      "heartbeats_total",
			Help:      "How many upstream heartbeat frames have been answered.",
		},
	),
}

type UpstreamExporter struct {
	connects    *prometheus.CounterVec
	disconnects *prometheus.CounterVec
	heartbeats  prometheus.Counter
}

func (u *UpstreamExporter) ConnectSucceeded() {
	u.observeConnect("ok")
}

func (u *UpstreamExporter) ConnectFailed() {
	u.observeConnect("error")
}

func (u *UpstreamExporter) observeConnect(status string) {
	u.connects.With(prometheus.Labels{"status": status}).Inc()
}

// DisconnectedLiveEnd records a stream that ended normally.
func (u *UpstreamExporter) DisconnectedLiveEnd() {
	u.observeDisconnect("live_end")
}

// DisconnectedLost records a connection that died unexpectedly.
func (u *UpstreamExporter) DisconnectedLost() {
	u.observeDisconnect("lost")
}

// DisconnectedKilled records a connection closed by the room pool.
func (u *UpstreamExporter) DisconnectedKilled() {
	u.observeDisconnect("killed")
}

func (u *UpstreamExporter) observeDisconnect(reason string) {
	u.disconnects.With(prometheus.Labels{"reason": reason}).Inc()
}

func (u *UpstreamExporter) HeartbeatAnswered() {
	u.heartbeats.Inc()
}
