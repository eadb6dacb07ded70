package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutgoingLatency tracks the latency of outgoing HTTP requests made
	// by the pooled client, labeled by normalized URL, method and status.
	OutgoingLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stoplayer_outgoing_request_duration_seconds",
			Help:    "Duration of outgoing HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"url", "method", "status"},
	)
)

var (
	RenderPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_render_passes_total",
		Help: "Number of render passes per layer, by result (ok, error, skipped)",
	}, []string{"layer", "result"})

	RenderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stoplayer_render_pass_duration_seconds",
		Help:    "Duration of a full fetch-reconcile-apply render pass",
		Buckets: prometheus.DefBuckets,
	}, []string{"layer"})

	FeaturesVisible = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stoplayer_features_visible",
		Help: "Number of features currently drawn on a layer",
	}, []string{"layer"})

	FeaturesAdded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_features_added_total",
		Help: "Features added to a layer by the reconciliation engine",
	}, []string{"layer"})

	FeaturesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_features_removed_total",
		Help: "Features removed from a layer by the reconciliation engine",
	}, []string{"layer"})
)

var (
	FetchPages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_dataset_pages_fetched_total",
		Help: "Pages fetched from the remote stop dataset",
	}, []string{"dataset"})

	FetchRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_dataset_records_fetched_total",
		Help: "Records fetched from the remote stop dataset",
	}, []string{"dataset"})
)

var (
	StopsWithoutVenue = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stoplayer_stops_without_venue",
		Help: "Stops in a monitored region with no exact-duplicate venue on the map",
	}, []string{"region"})

	RegionCheckFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stoplayer_region_check_failures_total",
		Help: "Failed reconciliation runs per monitored region",
	}, []string{"region"})
)
