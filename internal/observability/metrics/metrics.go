package metrics

import (
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "stancesense_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestRequests *prometheus.CounterVec
	ingestLatency  *prometheus.HistogramVec

	packetsProcessed *prometheus.CounterVec
	pipelineLatency  prometheus.Histogram

	scoringFallbacks *prometheus.CounterVec

	alertEvents      *prometheus.CounterVec
	alertRateLimited prometheus.Counter

	streamClients      prometheus.Gauge
	broadcastFailures  prometheus.Counter
	broadcastEnvelopes *prometheus.CounterVec
)

// Init registers pipeline observability metrics.
func Init(logger *log.Logger) {
	registerOnce.Do(func() {
		ingestRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_requests_total",
				Help: "Total ingest requests by result",
			},
			[]string{"result"},
		)
		ingestLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Synchronous ingest acknowledgment latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		packetsProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "packets_processed_total",
				Help: "Total background packet chains by result",
			},
			[]string{"result"},
		)
		pipelineLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "pipeline_latency_seconds",
				Help:    "Background chain duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		)

		scoringFallbacks = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "scoring_fallback_total",
				Help: "Model-backend failures that fell back to the heuristic",
			},
			[]string{"symptom"},
		)

		alertEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_events_total",
				Help: "Total alerts generated by event type",
			},
			[]string{"event_type"},
		)
		alertRateLimited = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "alert_rate_limited_total",
				Help: "Alert generation calls denied by the rate limiter",
			},
		)

		streamClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "stream_clients",
				Help: "Currently connected observer clients",
			},
		)
		broadcastFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_failures_total",
				Help: "Per-connection send failures during broadcast",
			},
		)
		broadcastEnvelopes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "broadcast_envelopes_total",
				Help: "Broadcast envelopes by type",
			},
			[]string{"type"},
		)

		prometheus.MustRegister(
			ingestRequests,
			ingestLatency,
			packetsProcessed,
			pipelineLatency,
			scoringFallbacks,
			alertEvents,
			alertRateLimited,
			streamClients,
			broadcastFailures,
			broadcastEnvelopes,
		)

		if logger != nil {
			logger.Printf("metrics: registered %s collectors", metricPrefix)
		}
	})
}

// ObserveIngest records ingest request duration and result.
func ObserveIngest(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if ingestRequests != nil {
		ingestRequests.WithLabelValues(result).Inc()
	}
	if ingestLatency != nil {
		ingestLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// ObservePipeline records background chain duration and result.
func ObservePipeline(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if packetsProcessed != nil {
		packetsProcessed.WithLabelValues(result).Inc()
	}
	if pipelineLatency != nil {
		pipelineLatency.Observe(duration.Seconds())
	}
}

// IncScoringFallback counts a heuristic fallback for one symptom.
func IncScoringFallback(symptom string) {
	if symptom == "" {
		symptom = "unknown"
	}
	if scoringFallbacks != nil {
		scoringFallbacks.WithLabelValues(symptom).Inc()
	}
}

// IncAlertEvent counts a generated alert by event type.
func IncAlertEvent(eventType string) {
	if eventType == "" {
		eventType = "unknown"
	}
	if alertEvents != nil {
		alertEvents.WithLabelValues(eventType).Inc()
	}
}

// IncAlertRateLimited counts a rate-limiter denial.
func IncAlertRateLimited() {
	if alertRateLimited != nil {
		alertRateLimited.Inc()
	}
}

// SetStreamClients reports the live observer connection count.
func SetStreamClients(count int) {
	if streamClients != nil {
		streamClients.Set(float64(count))
	}
}

// IncBroadcastFailure counts one failed connection send.
func IncBroadcastFailure() {
	if broadcastFailures != nil {
		broadcastFailures.Inc()
	}
}

// IncBroadcastEnvelope counts a broadcast envelope by type.
func IncBroadcastEnvelope(envelopeType string) {
	if envelopeType == "" {
		envelopeType = "unknown"
	}
	if broadcastEnvelopes != nil {
		broadcastEnvelopes.WithLabelValues(envelopeType).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
