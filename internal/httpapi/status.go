package httpapi

import (
	"net/http"

	"turbopix/internal/pipeline"
)

// IndexStatus reports the five canonical phase snapshots the scheduler
// tracks, keyed by their wire phase IDs.
func (s *Server) IndexStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.scheduler == nil {
		writeJSON(w, map[string]pipeline.Status{})
		return
	}
	writeJSON(w, s.scheduler.Status())
}

// TriggerRescan requests a full rescan (Discover walks every root again and
// orphaned rows are swept) on the scheduler's next run. A rescan already in
// progress makes this a no-op, matching the "only one pipeline run executes
// at a time" concurrency rule.
func (s *Server) TriggerRescan(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		writeJSONError(w, "indexing is not enabled", http.StatusServiceUnavailable)
		return
	}
	s.scheduler.TriggerRescan()
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "rescan triggered"})
}
