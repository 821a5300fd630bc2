package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Rooms = RoomsExporter{
	open: promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rooms",
			Name:      "open",
			Help:      "How many rooms are currently open.",
		},
	),
	clients: promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rooms",
			Name:      "clients_connected",
			Help:      "How many downstream clients are connected across all rooms.",
		},
	),
	eventsForwarded: promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rooms",
			Name:      "events_forwarded_total",
			Help:      "How many upstream events have been forwarded to clients.",
		},
	),
	messagesDropped: promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rooms",
			Name:      "messages_dropped_total",
			Help:      "How many messages were dropped because a client was slow or gone.",
		},
	),
	swept: promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rooms",
			Name:      "cleaned_total",
			Help:      "How many empty rooms have been cleaned up.",
		},
	),
}

type RoomsExporter struct {
	open            prometheus.Gauge
	clients         prometheus.Gauge
	eventsForwarded prometheus.Counter
	messagesDropped prometheus.Counter
	swept           prometheus.Counter
}

func (r *RoomsExporter) RoomOpened() {
	r.open.Inc()
}

func (r *RoomsExporter) RoomClosed() {
	r.open.Dec()
	r.swept.Inc()
}

func (r *RoomsExporter) ClientJoined() {
	r.clients.Inc()
}

func (r *RoomsExporter) ClientLeft() {
	r.clients.Dec()
}

func (r *RoomsExporter) EventForwarded() {
	r.eventsForwarded.Inc()
}

func (r *RoomsExporter) MessageDropped() {
	r.messagesDropped.Inc()
}
