package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "roomlink"

// Collector records registry activity as Prometheus metrics. It satisfies
// presence.Observer.
type Collector struct {
	registry *prometheus.Registry

	rooms      prometheus.Gauge
	sessions   prometheus.Gauge
	joins      prometheus.Counter
	leaves     prometheus.Counter
	deliveries *prometheus.CounterVec
	reaped     prometheus.Counter
}

// NewCollector creates a collector backed by its own registry so that
// independent instances never clash.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Rooms with at least one member.",
		}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Connections with a recorded session.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_total",
			Help:      "Successful room joins.",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leaves_total",
			Help:      "Room leaves.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Outbound message deliveries by kind and result.",
		}, []string{"kind", "result"}),
		reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaped_members_total",
			Help:      "Members removed from a room after a failed broadcast delivery.",
		}),
	}

	c.registry.MustRegister(
		c.rooms,
		c.sessions,
		c.joins,
		c.leaves,
		c.deliveries,
		c.reaped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// MemberJoined counts a join.
func (c *Collector) MemberJoined(roomID string) { c.joins.Inc() }

// MemberLeft counts a leave.
func (c *Collector) MemberLeft(roomID string) { c.leaves.Inc() }

// Delivered counts one outbound delivery attempt.
func (c *Collector) Delivered(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.deliveries.WithLabelValues(kind, result).Inc()
}

// Reaped counts members dropped from a room after a failed broadcast.
func (c *Collector) Reaped(roomID string, count int) {
	c.reaped.Add(float64(count))
}

// Occupancy sets the room and session gauges.
func (c *Collector) Occupancy(rooms, sessions int) {
	c.rooms.Set(float64(rooms))
	c.sessions.Set(float64(sessions))
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
