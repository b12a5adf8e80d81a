package httpapi

import (
	"net/http"
	"time"

	"turbopix/internal/logging"
)

type timelineView struct {
	Buckets []timelineBucketView `json:"buckets"`
	MinTime *time.Time           `json:"minTime,omitempty"`
	MaxTime *time.Time           `json:"maxTime,omitempty"`
}

type timelineBucketView struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// Timeline answers the scrubbable date histogram: per-(year,month) counts
// plus the library's overall min/max capture time.
func (s *Server) Timeline(w http.ResponseWriter, r *http.Request) {
	buckets, minT, maxT, err := s.store.TimelineDensity(r.Context())
	if err != nil {
		logging.Error("httpapi: timeline density failed: %v", err)
		writeJSONError(w, "failed to compute timeline", http.StatusInternalServerError)
		return
	}

	view := timelineView{MinTime: minT, MaxTime: maxT}
	for _, b := range buckets {
		view.Buckets = append(view.Buckets, timelineBucketView{Year: b.Year, Month: b.Month, Count: b.Count})
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, view)
}
