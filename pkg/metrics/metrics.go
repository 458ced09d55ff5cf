package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Task metrics
	TasksPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "miner_tasks_pending",
			Help: "Total number of tasks that are not started or have failed and are eligible for retry",
		},
	)

	TasksInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "miner_tasks_in_progress",
			Help: "Total number of tasks currently owned by a worker",
		},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "miner_queue_depth",
			Help: "Depth of the bounded backpressure channel per worker stage",
		},
		[]string{"stage"},
	)

	// Download metrics
	DownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_downloads_total",
			Help: "Total number of archive downloads by outcome",
		},
		[]string{"status"},
	)

	DownloadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miner_download_duration_seconds",
			Help:    "Time taken to download one archive in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Extraction metrics
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_extractions_total",
			Help: "Total number of archive extractions by outcome",
		},
		[]string{"status"},
	)

	ExtractionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miner_extraction_duration_seconds",
			Help:    "Time taken to extract one archive in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Waste analysis metrics
	WasteAnalysisDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miner_waste_analysis_duration_seconds",
			Help:    "Time taken to analyze one package version for waste in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Report metrics
	ReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "miner_reports_total",
			Help: "Total number of report merges by outcome",
		},
		[]string{"status"},
	)

	ReportMergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "miner_report_merge_duration_seconds",
			Help:    "Time taken to merge one report into its aggregate in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Engine loop metrics
	LoopDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "miner_loop_duration_seconds",
			Help:    "Time taken for one iteration of an engine loop in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"loop"},
	)

	PackagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "miner_packages_total",
			Help: "Total number of known packages",
		},
	)

	PackageVersionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "miner_package_versions_total",
			Help: "Total number of known package versions",
		},
	)
)

func init() {
	prometheus.MustRegister(TasksPending)
	prometheus.MustRegister(TasksInProgress)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(DownloadsTotal)
	prometheus.MustRegister(DownloadDuration)
	prometheus.MustRegister(ExtractionsTotal)
	prometheus.MustRegister(ExtractionDuration)
	prometheus.MustRegister(WasteAnalysisDuration)
	prometheus.MustRegister(ReportsTotal)
	prometheus.MustRegister(ReportMergeDuration)
	prometheus.MustRegister(LoopDuration)
	prometheus.MustRegister(PackagesTotal)
	prometheus.MustRegister(PackageVersionsTotal)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations and recording the result into a
// histogram once the operation completes.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into a labeled histogram.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
