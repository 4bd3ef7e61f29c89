package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	predictions *prometheus.CounterVec
	confidence  *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
	sourceHits  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	lastPrice   *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New registers the recorder's collectors with the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors with reg; tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalcast",
				Name:      "predictions_total",
				Help:      "Predictions issued by symbol and direction",
			},
			[]string{"symbol", "direction"},
		),
		confidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "signalcast",
				Name:      "prediction_confidence",
				Help:      "Confidence of issued predictions",
				Buckets:   []float64{50, 60, 70, 75, 80, 85, 90, 95, 100},
			},
			[]string{"symbol"},
		),
		resolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalcast",
				Name:      "resolutions_total",
				Help:      "Resolved predictions by outcome",
			},
			[]string{"symbol", "correct"},
		),
		sourceHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalcast",
				Name:      "series_source_hits_total",
				Help:      "Series served per data source",
			},
			[]string{"source"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "signalcast",
				Name:      "errors_total",
				Help:      "Errors encountered by kind",
			},
			[]string{"type"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "signalcast",
				Name:      "last_price",
				Help:      "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "signalcast",
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordPrediction counts an issued prediction and observes its confidence.
func (r *Recorder) RecordPrediction(symbol, direction string, confidence float64) {
	r.predictions.WithLabelValues(symbol, direction).Inc()
	r.confidence.WithLabelValues(symbol).Observe(confidence)
}

func (r *Recorder) RecordResolution(symbol string, correct bool) {
	r.resolutions.WithLabelValues(symbol, strconv.FormatBool(correct)).Inc()
}

func (r *Recorder) RecordSourceHit(source string) {
	r.sourceHits.WithLabelValues(source).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordPrediction(string, string, float64) {}
func (Nop) RecordResolution(string, bool)            {}
func (Nop) RecordSourceHit(string)                   {}
func (Nop) RecordError(string)                       {}
func (Nop) RecordLastPrice(string, float64)          {}
func (Nop) RecordLatency(string, float64)            {}
