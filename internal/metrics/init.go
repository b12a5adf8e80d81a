package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	volumes := []string{"media", "derivcache", "store", "unknown"}
	fsOps := []string{"read", "write", "stat", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	retryOps := []string{"stat", "open", "readdir", "write"}
	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	for _, phase := range []string{"discovering", "metadata", "semantic_vectors", "collages", "housekeeping"} {
		PipelinePhaseRunning.WithLabelValues(phase)
		PipelineItemsProcessed.WithLabelValues(phase, "success")
		PipelineItemsProcessed.WithLabelValues(phase, "error")
	}

	for _, kind := range []string{"thumbnail", "transcode", "collage"} {
		DerivativeGenerationsTotal.WithLabelValues(kind, "success")
		DerivativeGenerationsTotal.WithLabelValues(kind, "error")
		DerivativeCacheHits.WithLabelValues(kind)
		DerivativeCacheMisses.WithLabelValues(kind)
	}

	for _, op := range []string{"upsert_photo", "get_photo_by_hash", "get_photo_by_path",
		"delete_orphans", "vacuum", "upsert_vector", "search_by_vector"} {
		StoreQueryTotal.WithLabelValues(op, "success")
		StoreQueryTotal.WithLabelValues(op, "error")
		StoreQueryDuration.WithLabelValues(op)
	}
}
