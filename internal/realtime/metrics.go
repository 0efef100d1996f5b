package realtime

import (
	"travel-together-api/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the hub's prometheus collectors. All methods are nil-safe.
type Metrics struct {
	connections    prometheus.Gauge
	rooms          *prometheus.GaugeVec
	frames         *prometheus.CounterVec
	frameErrors    *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	authorizations *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "travel_realtime_connections_active",
			Help: "Users with a live websocket connection.",
		}),
		rooms: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "travel_realtime_rooms_active",
			Help: "Non-empty rooms by kind.",
		}, []string{"kind"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_realtime_frames_total",
			Help: "Inbound frames by type.",
		}, []string{"type"}),
		frameErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_realtime_frame_errors_total",
			Help: "Frames answered with an error frame, by code.",
		}, []string{"code"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_realtime_deliveries_total",
			Help: "Per-recipient fan-out results.",
		}, []string{"result"}),
		authorizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "travel_realtime_trip_authorizations_total",
			Help: "Trip join authorization outcomes.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.connections,
		m.rooms,
		m.frames,
		m.frameErrors,
		m.deliveries,
		m.authorizations,
	)
	return m
}

func (m *Metrics) observeState(connections int, rooms *Rooms) {
	if m == nil {
		return
	}
	m.connections.Set(float64(connections))
	m.rooms.WithLabelValues(string(models.RoomTrip)).Set(float64(rooms.Trips.Len()))
	m.rooms.WithLabelValues(string(models.RoomDirect)).Set(float64(rooms.Direct.Len()))
}

func (m *Metrics) frame(frameType string) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(frameType).Inc()
}

func (m *Metrics) frameError(code string) {
	if m == nil {
		return
	}
	m.frameErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) authorization(outcome string) {
	if m == nil {
		return
	}
	m.authorizations.WithLabelValues(outcome).Inc()
}
