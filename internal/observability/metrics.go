package observability

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/lumen-backend/internal/platform/envutil"
	"github.com/yungbote/lumen-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	generations   *CounterVec
	genLatency    *HistogramVec
	busPublishErr *CounterVec
	interactions  *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled.
// Every method is safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Metrics enabled")
		}
	})
	return instance
}

// NewMetrics builds an unregistered collector set.
func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("lumen_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"lumen_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("lumen_api_inflight_requests", "In-flight API requests."),
		generations: NewCounterVec("lumen_generations_total", "Generation attempts by kind/outcome.", []string{"kind", "outcome"}),
		genLatency: NewHistogramVec(
			"lumen_generation_duration_seconds",
			"Generation stream duration in seconds by kind.",
			[]string{"kind"},
			[]float64{1, 5, 10, 30, 60, 120, 300, 600},
		),
		busPublishErr: NewCounterVec("lumen_realtime_publish_errors_total", "Realtime publish failures by event.", []string{"event"}),
		interactions:  NewCounterVec("lumen_interactions_total", "Interaction writes by kind/active.", []string{"kind", "active"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.generations, m.genLatency,
		m.busPublishErr, m.interactions,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveGeneration records one finished generation attempt. outcome is
// "completed" or "failed".
func (m *Metrics) ObserveGeneration(kind, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.generations.Inc(kind, outcome)
	m.genLatency.Observe(dur.Seconds(), kind)
}

func (m *Metrics) GenerationCount(kind, outcome string) float64 {
	if m == nil {
		return 0
	}
	return m.generations.Value(kind, outcome)
}

func (m *Metrics) IncPublishError(event string) {
	if m == nil {
		return
	}
	m.busPublishErr.Inc(event)
}

func (m *Metrics) IncInteraction(kind string, active bool) {
	if m == nil {
		return
	}
	state := "false"
	if active {
		state = "true"
	}
	m.interactions.Inc(kind, state)
}
