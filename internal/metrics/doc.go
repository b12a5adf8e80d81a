// Package metrics provides Prometheus instrumentation for turbopix.
//
// This package defines and exposes various metrics that can be scraped by Prometheus
// to monitor the health, performance, and behavior of the application. All metrics
// are prefixed with "turbopix_" to avoid naming collisions with other applications.
//
// # Metric Categories
//
// The metrics are organized into the following categories:
//
// ## HTTP Metrics
//
// Track HTTP request performance and error rates:
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Store Metrics
//
// Monitor database query performance and storage:
//   - StoreQueryTotal: Counter of queries by operation and status
//   - StoreQueryDuration: Histogram of query duration by operation
//   - StoreSizeBytes: Gauge of database file sizes (main, wal, shm)
//
// ## Pipeline Metrics
//
// Track the scheduler's indexing phases, labelled by phase ID:
//   - PipelinePhaseRunsTotal: Counter of phase runs
//   - PipelinePhaseDuration: Histogram of phase run duration
//   - PipelineItemsProcessed: Counter of items processed by phase and status
//   - PipelinePhaseRunning: Gauge indicating if a phase is active
//
// ## Semantic Metrics
//
//   - SemanticEncodeTotal: Counter of encodes by kind (image/video/text) and status
//   - SemanticEncodeDuration: Histogram of encode duration by kind
//   - SemanticSearchQueries: Counter of semantic search queries
//
// ## Derivative Cache Metrics
//
// Monitor thumbnail/transcode/collage generation and caching:
//   - DerivativeGenerationsTotal: Counter by kind and status
//   - DerivativeGenerationDuration: Histogram of generation time by kind
//   - DerivativeCacheHits: Counter of cache hits by kind
//   - DerivativeCacheMisses: Counter of cache misses by kind
//   - DerivativeCacheSizeBytes: Gauge of cache size in bytes
//   - DerivativeCacheCount: Gauge of cached file count
//
// ## Video Processing Metrics
//
//   - VideoProcessingJobsTotal: Counter by operation and status
//   - VideoProcessingJobDuration: Histogram of job duration by operation
//   - VideoProcessingJobsInProgress: Gauge of active jobs
//
// ## Library and Housekeeping Metrics
//
//   - LibraryPhotosTotal: Gauge of indexed photos by media type (image/raw/video)
//   - LibraryFavoritesTotal: Gauge of favorited photos
//   - HousekeepingCandidatesTotal: Gauge of housekeeping candidates by reason
//
// ## Filesystem and Scan Metrics
//
//   - FilesystemOperationDuration / FilesystemOperationErrors: by volume and operation
//   - FilesystemRetryAttempts / FilesystemRetrySuccess / FilesystemRetryFailures /
//     FilesystemRetryDuration / FilesystemStaleErrors: by retry operation and volume
//   - ScanOperationsTotal, ScanFilesScanned, ScanWatcherEventsTotal, ScanWatcherErrors
//
// ## Memory Metrics
//
// Monitor Go runtime memory and pressure:
//   - GoMemLimit: Gauge of configured GOMEMLIMIT
//   - GoMemAllocBytes: Gauge of current heap allocation
//   - GoMemSysBytes: Gauge of total memory from OS
//   - GoGCRuns: Counter of completed GC cycles
//   - GoGCPauseTotalSeconds, GoGCPauseLastSeconds, GoGCCPUFraction: GC pause and CPU stats
//   - MemoryUsageRatio: Gauge of memory usage as ratio of limit
//   - MemoryPaused: Gauge indicating if processing is paused due to memory pressure
//   - MemoryGCPauses: Counter of times processing was paused for memory
//
// ## Application Info
//
// Expose build information:
//   - AppInfo: Gauge with version, commit, and Go version labels
//
// # Usage
//
// Metrics are automatically registered with the default Prometheus registry
// using promauto. To expose them, mount the promhttp.Handler() on your
// metrics endpoint:
//
//	import "github.com/prometheus/client_golang/prometheus/promhttp"
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// # Recording Metrics
//
// To record metrics from other packages, import this package and use the
// exported metric variables:
//
//	import "turbopix/internal/metrics"
//
//	// Increment a counter
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/photos", "200").Inc()
//
//	// Observe a histogram value
//	metrics.HTTPRequestDuration.WithLabelValues("GET", "/api/photos").Observe(0.123)
//
//	// Set a gauge value
//	metrics.LibraryFavoritesTotal.Set(5)
//
// # Collector
//
// The package provides a [Collector] type that periodically gathers
// statistics from a [LibraryStatsProvider] and updates the corresponding gauges.
// This is useful for metrics that need to be calculated from external
// sources like the database:
//
//	collector := metrics.NewCollector(statsProvider, dbPath, 1*time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// The collector automatically updates:
//   - Library statistics (image/raw/video counts, favorites)
//   - Database file sizes
//   - Derivative cache size and file count (when SetDerivativeCacheDir was called)
//   - Go runtime memory statistics
//
// # Prometheus Queries
//
// Example PromQL queries for common use cases:
//
// Request rate by endpoint:
//
//	sum(rate(turbopix_http_requests_total[5m])) by (path)
//
// P95 response time:
//
//	histogram_quantile(0.95, sum(rate(turbopix_http_request_duration_seconds_bucket[5m])) by (le))
//
// Error rate:
//
//	sum(rate(turbopix_http_requests_total{status=~"5.."}[5m])) / sum(rate(turbopix_http_requests_total[5m]))
//
// Derivative cache hit rate:
//
//	rate(turbopix_derivative_cache_hits_total[5m]) /
//	(rate(turbopix_derivative_cache_hits_total[5m]) + rate(turbopix_derivative_cache_misses_total[5m]))
//
// Store query latency by operation:
//
//	histogram_quantile(0.95, sum(rate(turbopix_store_query_duration_seconds_bucket[5m])) by (le, operation))
//
// Memory pressure events:
//
//	rate(turbopix_memory_gc_pauses_total[1h])
package metrics
