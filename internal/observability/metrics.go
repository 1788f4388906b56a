package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame pump timings sit well under a second; the default buckets only
// start resolving at 5ms.
var frameBuckets = prometheus.ExponentialBuckets(0.0005, 2, 12)

type moduleMetrics struct {
	framesTotal         prometheus.Counter
	framesDropped       prometheus.Counter
	frameQueueLatency   prometheus.Histogram
	frameRenderDuration prometheus.Histogram
	frameWaitDuration   prometheus.Histogram
	pumpTransitions     *prometheus.CounterVec

	sessionsActive  prometheus.Gauge
	sessionRequests *prometheus.CounterVec
	discoveries     prometheus.Gauge
	eventsForwarded *prometheus.CounterVec

	gatewayClients         prometheus.Gauge
	gatewayRequests        *prometheus.CounterVec
	gatewayRequestDuration *prometheus.HistogramVec

	tickDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			framesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "xr_frames_total",
					Help: "Total animation frames produced by session pumps.",
				},
			),
			framesDropped: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "xr_frames_dropped_total",
					Help: "Frames dropped for lagging frame subscribers.",
				},
			),
			frameQueueLatency: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "xr_frame_queue_latency_seconds",
					Help:    "Time a render request spent queued before the pump picked it up.",
					Buckets: frameBuckets,
				},
			),
			frameRenderDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "xr_frame_render_duration_seconds",
					Help:    "Device render call duration in seconds.",
					Buckets: frameBuckets,
				},
			),
			frameWaitDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "xr_frame_wait_duration_seconds",
					Help:    "Time spent waiting on the device's next animation frame.",
					Buckets: frameBuckets,
				},
			),
			pumpTransitions: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "xr_pump_transitions_total",
					Help: "Frame pump state transitions by target state.",
				},
				[]string{"state"},
			),
			sessionsActive: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "xr_sessions_active",
					Help: "Current live session count.",
				},
			),
			sessionRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "xr_session_requests_total",
					Help: "Total session requests by mode and outcome.",
				},
				[]string{"mode", "status"},
			),
			discoveries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "xr_discoveries_registered",
					Help: "Registered device discoveries, simulated devices included.",
				},
			),
			eventsForwarded: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "xr_events_forwarded_total",
					Help: "Device events forwarded to content by kind.",
				},
				[]string{"kind"},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_clients_active",
					Help: "Connected gateway clients.",
				},
			),
			gatewayRequests: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "gateway_requests_total",
					Help: "Gateway requests by method and outcome.",
				},
				[]string{"method", "status"},
			),
			gatewayRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "gateway_request_duration_seconds",
					Help:    "Gateway request handling duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			tickDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "runtime_tick_duration_seconds",
					Help:    "Registry tick duration in seconds.",
					Buckets: frameBuckets,
				},
			),
		}

		prometheus.MustRegister(
			m.framesTotal,
			m.framesDropped,
			m.frameQueueLatency,
			m.frameRenderDuration,
			m.frameWaitDuration,
			m.pumpTransitions,
			m.sessionsActive,
			m.sessionRequests,
			m.discoveries,
			m.eventsForwarded,
			m.gatewayClients,
			m.gatewayRequests,
			m.gatewayRequestDuration,
			m.tickDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordFrameTransmit(queued time.Duration) {
	m := getMetrics()
	m.frameQueueLatency.Observe(queued.Seconds())
}

func RecordFrameRender(d time.Duration) {
	m := getMetrics()
	m.frameRenderDuration.Observe(d.Seconds())
}

func RecordFrameWait(d time.Duration) {
	m := getMetrics()
	m.frameWaitDuration.Observe(d.Seconds())
	m.framesTotal.Inc()
}

func RecordFrameDropped() {
	m := getMetrics()
	m.framesDropped.Inc()
}

func RecordPumpTransition(state string) {
	m := getMetrics()
	m.pumpTransitions.WithLabelValues(state).Inc()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.sessionsActive.Set(float64(count))
}

func RecordSessionRequest(mode string, granted bool) {
	m := getMetrics()
	status := "denied"
	if granted {
		status = "granted"
	}
	m.sessionRequests.WithLabelValues(mode, status).Inc()
}

func SetDiscoveries(count int) {
	m := getMetrics()
	m.discoveries.Set(float64(count))
}

func RecordEventForwarded(kind string) {
	m := getMetrics()
	m.eventsForwarded.WithLabelValues(kind).Inc()
}

func SetGatewayClients(count int) {
	m := getMetrics()
	m.gatewayClients.Set(float64(count))
}

func RecordGatewayRequest(method string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.gatewayRequests.WithLabelValues(method, status).Inc()
	m.gatewayRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func RecordTick(d time.Duration) {
	m := getMetrics()
	m.tickDuration.Observe(d.Seconds())
}
