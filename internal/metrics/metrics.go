package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Store metrics
var (
	StoreQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_store_queries_total",
			Help: "Total number of store queries",
		},
		[]string{"operation", "status"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_store_query_duration_seconds",
			Help:    "Store query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	StoreSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbopix_store_size_bytes",
			Help: "Size of the SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Pipeline metrics, one set per scheduler phase.
var (
	PipelinePhaseRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_pipeline_phase_runs_total",
			Help: "Total number of pipeline phase runs",
		},
		[]string{"phase"},
	)

	PipelinePhaseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_pipeline_phase_duration_seconds",
			Help:    "Duration of a pipeline phase run in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 300, 900, 1800},
		},
		[]string{"phase"},
	)

	PipelineItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_pipeline_items_processed_total",
			Help: "Total number of items processed by a pipeline phase",
		},
		[]string{"phase", "status"},
	)

	PipelinePhaseRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbopix_pipeline_phase_running",
			Help: "Whether a pipeline phase is currently running (1 = running, 0 = idle)",
		},
		[]string{"phase"},
	)
)

// Semantic encoder metrics
var (
	SemanticEncodeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_semantic_encodes_total",
			Help: "Total number of semantic encode operations",
		},
		[]string{"kind", "status"}, // kind: "image", "video", "text"
	)

	SemanticEncodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_semantic_encode_duration_seconds",
			Help:    "Semantic encode duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	SemanticSearchQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turbopix_semantic_search_queries_total",
			Help: "Total number of semantic search queries executed",
		},
	)
)

// Derivative cache metrics
var (
	DerivativeGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_derivative_generations_total",
			Help: "Total number of derivative generations",
		},
		[]string{"kind", "status"}, // kind: "thumbnail", "transcode", "collage"
	)

	DerivativeGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_derivative_generation_duration_seconds",
			Help:    "Derivative generation duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"kind"},
	)

	DerivativeCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_derivative_cache_hits_total",
			Help: "Total number of derivative cache hits",
		},
		[]string{"kind"},
	)

	DerivativeCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_derivative_cache_misses_total",
			Help: "Total number of derivative cache misses",
		},
		[]string{"kind"},
	)

	DerivativeCacheSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_derivative_cache_size_bytes",
			Help: "Total size of the derivative cache in bytes",
		},
	)

	DerivativeCacheCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_derivative_cache_count",
			Help: "Number of derivative files in the cache",
		},
	)
)

// Video processing metrics
var (
	VideoProcessingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_video_processing_jobs_total",
			Help: "Total number of video processing jobs",
		},
		[]string{"operation", "status"}, // operation: "probe", "frame_extract", "transcode", "moov_fix"
	)

	VideoProcessingJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_video_processing_job_duration_seconds",
			Help:    "Video processing job duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"operation"},
	)

	VideoProcessingJobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_video_processing_jobs_in_progress",
			Help: "Number of video processing jobs currently in progress",
		},
	)
)

// Library metrics
var (
	LibraryPhotosTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbopix_library_photos_total",
			Help: "Total number of indexed photos by media type",
		},
		[]string{"type"},
	)

	LibraryFavoritesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_library_favorites_total",
			Help: "Total number of favorited photos",
		},
	)
)

// Housekeeping metrics
var (
	HousekeepingCandidatesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbopix_housekeeping_candidates_total",
			Help: "Number of housekeeping candidates by reason",
		},
		[]string{"reason"},
	)
)

// Go runtime metrics, sampled by the Collector.
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_go_mem_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_go_mem_sys_bytes",
			Help: "Total bytes of memory obtained from the OS",
		},
	)

	GoGCRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turbopix_go_gc_runs_total",
			Help: "Total number of completed GC cycles",
		},
	)

	GoGCPauseTotalSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turbopix_go_gc_pause_seconds_total",
			Help: "Cumulative time spent in GC stop-the-world pauses",
		},
	)

	GoGCPauseLastSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_go_gc_pause_last_seconds",
			Help: "Duration of the most recent GC pause",
		},
	)

	GoGCCPUFraction = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_go_gc_cpu_fraction",
			Help: "Fraction of CPU time spent in garbage collection",
		},
	)

	GoMemLimit = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "turbopix_go_mem_limit_bytes",
			Help: "Configured soft memory limit, if any",
		},
	)
)

// Memory backpressure metrics, set by internal/memory's monitor.
var (
	MemoryUsageRatio = promauto.NewGauge(prometheus.GaugeOpts{Name: "turbopix_memory_usage_ratio", Help: "Heap allocation as a ratio of the memory limit"})
	MemoryPaused     = promauto.NewGauge(prometheus.GaugeOpts{Name: "turbopix_memory_paused", Help: "Whether processing is paused due to memory pressure (1 = paused, 0 = running)"})
	MemoryGCPauses   = promauto.NewCounter(prometheus.CounterOpts{Name: "turbopix_memory_gc_pauses_total", Help: "Total number of times processing was paused for memory pressure"})
)

// Filesystem observer metrics (volume x operation)
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_filesystem_operation_errors_total",
			Help: "Total number of filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts",
		},
		[]string{"retry_op", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_filesystem_retry_success_total",
			Help: "Total number of filesystem retries that eventually succeeded",
		},
		[]string{"retry_op", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_filesystem_retry_failures_total",
			Help: "Total number of filesystem retries that were exhausted",
		},
		[]string{"retry_op", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "turbopix_filesystem_retry_duration_seconds",
			Help:    "Total time spent retrying a filesystem operation",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"retry_op", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_filesystem_stale_handle_errors_total",
			Help: "Total number of stale-file-handle errors observed on retry",
		},
		[]string{"retry_op", "volume"},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "turbopix_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// Filesystem scan metrics
var (
	ScanOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_scan_operations_total",
			Help: "Total number of filesystem scan operations",
		},
		[]string{"operation", "status"},
	)

	ScanFilesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_scan_files_scanned_total",
			Help: "Total number of files scanned during a discovery walk",
		},
		[]string{"operation"},
	)

	ScanWatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turbopix_scan_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	ScanWatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "turbopix_scan_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
