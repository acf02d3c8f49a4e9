package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Finish reasons for TrackFinished.
const (
	ReasonCompleted = "completed"
	ReasonSkipped   = "skipped"
	ReasonStopped   = "stopped"
	ReasonError     = "error"
)

// Metrics holds the playback counters and gauges. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	activePlayers      prometheus.Gauge
	tracksStarted      prometheus.Counter
	tracksFinished     *prometheus.CounterVec
	resolutionFailures prometheus.Counter
	enqueueRejected    prometheus.Counter
	idleTeardowns      prometheus.Counter
	commandsTotal      *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		activePlayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rbot_active_players",
			Help: "Number of guilds with a live playback loop",
		}),
		tracksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbot_tracks_started_total",
			Help: "Tracks handed to the audio sink",
		}),
		tracksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbot_tracks_finished_total",
			Help: "Tracks that left the player, by reason",
		}, []string{"reason"}),
		resolutionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbot_resolution_failures_total",
			Help: "Queue items skipped because they could not be resolved",
		}),
		enqueueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbot_enqueue_rejected_total",
			Help: "Play requests rejected because the queue was full",
		}),
		idleTeardowns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rbot_idle_teardowns_total",
			Help: "Players destroyed by the idle timeout",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rbot_commands_total",
			Help: "Commands executed, by name and result",
		}, []string{"command", "result"}),
	}

	registry.MustRegister(
		m.activePlayers,
		m.tracksStarted,
		m.tracksFinished,
		m.resolutionFailures,
		m.enqueueRejected,
		m.idleTeardowns,
		m.commandsTotal,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) PlayerStarted() {
	if m != nil {
		m.activePlayers.Inc()
	}
}

func (m *Metrics) PlayerDestroyed() {
	if m != nil {
		m.activePlayers.Dec()
	}
}

func (m *Metrics) TrackStarted() {
	if m != nil {
		m.tracksStarted.Inc()
	}
}

func (m *Metrics) TrackFinished(reason string) {
	if m != nil {
		m.tracksFinished.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) ResolutionFailed() {
	if m != nil {
		m.resolutionFailures.Inc()
	}
}

func (m *Metrics) EnqueueRejected() {
	if m != nil {
		m.enqueueRejected.Inc()
	}
}

func (m *Metrics) IdleTeardown() {
	if m != nil {
		m.idleTeardowns.Inc()
	}
}

func (m *Metrics) CommandExecuted(name string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.commandsTotal.WithLabelValues(name, result).Inc()
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
