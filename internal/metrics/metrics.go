package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the indexing pipeline.
type Metrics struct {
	// Processing
	TranscriptsProcessed *prometheus.CounterVec
	ChunksPerTranscript  prometheus.Histogram
	NLPItemErrors        *prometheus.CounterVec
	StageSeconds         *prometheus.HistogramVec

	// Workflow
	Executions *prometheus.CounterVec
	CDCEvents  *prometheus.CounterVec

	// Assistant
	Recommendations *prometheus.CounterVec
}

// Default registers the metrics with the default registerer.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

// New registers a fresh set of metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TranscriptsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transcripts_processed_total",
				Help: "Transcripts run through segmentation and NLP",
			},
			[]string{"status"},
		),
		ChunksPerTranscript: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "transcript_chunks",
				Help:    "NLP chunks produced per transcript",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
			},
		),
		NLPItemErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nlp_item_errors_total",
				Help: "Documents the NLP service failed inside a batch",
			},
			[]string{"operation"},
		),
		StageSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_seconds",
				Help:    "Time spent in each workflow stage",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600, 1800},
			},
			[]string{"stage"},
		),
		Executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_executions_total",
				Help: "Finished workflow executions",
			},
			[]string{"status"},
		),
		CDCEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cdc_events_total",
				Help: "Change records received",
			},
			[]string{"event_name", "outcome"},
		),
		Recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "assistant_recommendations_total",
				Help: "Live contact segments handled by the assistant",
			},
			[]string{"outcome"},
		),
	}
}
