// Package metrics provides Prometheus metrics for practice sessions.
package metrics

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Playback states reported by the playback_state gauge.
const (
	StateStopped = 0
	StatePlaying = 1
	StatePaused  = 2
)

var defaultOffsetBuckets = []float64{0.01, 0.025, 0.05, 0.075, 0.1, 0.15, 0.2}

// Manager owns the trainer's collectors. A nil or disabled Manager ignores
// every call.
type Manager struct {
	namespace     string
	subsystem     string
	offsetBuckets []float64
	enabled       bool
	registry      *prometheus.Registry

	notesJudged      *prometheus.CounterVec
	keyPresses       *prometheus.CounterVec
	pressOffset      prometheus.Histogram
	tonesPlayed      prometheus.Counter
	tickDuration     prometheus.Histogram
	sectionsEntered  prometheus.Counter
	repeatsExhausted prometheus.Counter
	playbackState    prometheus.Gauge
	midiConnected    prometheus.Gauge

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewManager creates a metrics manager. Without WithRegistry it registers on
// a private registry so repeated construction never collides.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:     "pianofall",
		subsystem:     "trainer",
		offsetBuckets: defaultOffsetBuckets,
		enabled:       true,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.notesJudged = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notes_judged_total",
		Help:      "Notes that reached a terminal judgment, by state",
	}, []string{"state"})

	m.keyPresses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "key_presses_total",
		Help:      "Live key presses by match outcome",
	}, []string{"outcome"})

	m.pressOffset = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "press_offset_seconds",
		Help:      "Absolute distance between a matched press and its note start",
		Buckets:   m.offsetBuckets,
	})

	m.tonesPlayed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tones_played_total",
		Help:      "Score notes sent to the instrument",
	})

	m.tickDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "tick_duration_seconds",
		Help:      "Time spent in one engine tick",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	m.sectionsEntered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sections_entered_total",
		Help:      "Section passes started, including repeats",
	})

	m.repeatsExhausted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "repeats_exhausted_total",
		Help:      "Practice runs that completed every configured repeat",
	})

	m.playbackState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "playback_state",
		Help:      "0 stopped, 1 playing, 2 paused",
	})

	m.midiConnected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "midi_input_connected",
		Help:      "1 while a MIDI input device is connected",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "State API requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_seconds",
		Help:      "State API request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})
}

func (m *Manager) on() bool { return m != nil && m.enabled }

// RecordJudgment counts a terminal transition. Offsets are only observed for
// correct notes.
func (m *Manager) RecordJudgment(state string, offset float64) {
	if !m.on() {
		return
	}
	m.notesJudged.WithLabelValues(state).Inc()
	if state == "correct" {
		m.pressOffset.Observe(math.Abs(offset))
	}
}

func (m *Manager) RecordPress(outcome string) {
	if !m.on() {
		return
	}
	m.keyPresses.WithLabelValues(outcome).Inc()
}

func (m *Manager) RecordTone() {
	if !m.on() {
		return
	}
	m.tonesPlayed.Inc()
}

func (m *Manager) ObserveTick(d time.Duration) {
	if !m.on() {
		return
	}
	m.tickDuration.Observe(d.Seconds())
}

func (m *Manager) RecordSectionEntered() {
	if !m.on() {
		return
	}
	m.sectionsEntered.Inc()
}

func (m *Manager) RecordRepeatExhausted() {
	if !m.on() {
		return
	}
	m.repeatsExhausted.Inc()
}

func (m *Manager) SetPlaybackState(state int) {
	if !m.on() {
		return
	}
	m.playbackState.Set(float64(state))
}

func (m *Manager) SetMIDIConnected(connected bool) {
	if !m.on() {
		return
	}
	if connected {
		m.midiConnected.Set(1)
	} else {
		m.midiConnected.Set(0)
	}
}

func (m *Manager) RecordHTTPRequest(route, method string, status int, d time.Duration) {
	if !m.on() {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

// Registry returns the registry backing this manager.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the manager's registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
