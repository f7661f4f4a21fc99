// Package metrics holds the prometheus collectors of the messaging core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livestream_ws_connected_clients",
		Help: "Authenticated websocket connections currently attached.",
	})

	ActiveRooms = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livestream_ws_active_rooms",
		Help: "Rooms with at least one joined connection.",
	})

	InboundEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livestream_ws_inbound_events_total",
		Help: "Inbound protocol events by name and outcome.",
	}, []string{"event", "outcome"})

	Deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livestream_ws_deliveries_total",
		Help: "Broadcast deliveries by result (delivered, dropped).",
	}, []string{"result"})

	AuthFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livestream_ws_auth_failures_total",
		Help: "Connections rejected during the authentication handshake.",
	})

	NotificationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livestream_notifications_created_total",
		Help: "Persisted notifications by type.",
	}, []string{"type"})

	NotificationsPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livestream_notifications_purged_total",
		Help: "Read notifications removed by the retention job.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectedClients,
		ActiveRooms,
		InboundEvents,
		Deliveries,
		AuthFailures,
		NotificationsCreated,
		NotificationsPurged,
	)
}
