// Package httpapi wires the library's domain packages (store, search,
// mutator, derivcache, pipeline, collage, housekeeping) into the HTTP
// surface the spec's external-interfaces contract describes, following the
// teacher's handlers package's dependency-struct-plus-method-set shape.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"turbopix/internal/collage"
	"turbopix/internal/derivcache"
	"turbopix/internal/housekeeping"
	"turbopix/internal/middleware"
	"turbopix/internal/mutator"
	"turbopix/internal/pipeline"
	"turbopix/internal/search"
	"turbopix/internal/store"
	"turbopix/internal/videoproc"
)

// Server holds every dependency a handler needs. Its methods are the
// registered route handlers; NewRouter wires them to paths.
type Server struct {
	store       *store.Store
	search      *search.Engine
	mutator     *mutator.Mutator
	cache       *derivcache.Cache
	video       *videoproc.Processor
	scheduler   *pipeline.Scheduler
	collages    *collage.Builder
	housekeeper *housekeeping.Scorer
	photoRoots  []string

	// collageAcceptDir is where an accepted collage's JPEG is moved to, so it
	// falls inside a watched root and flows back through Discover/Metadata
	// like any other new file.
	collageAcceptDir string
}

// New creates a Server. video may be nil (no video support compiled in);
// collages/housekeeper may be nil if the corresponding background phases
// were not wired. A nil collages makes the collage generation endpoint
// report disabled; there is no housekeeping trigger endpoint.
func New(
	st *store.Store,
	eng *search.Engine,
	mut *mutator.Mutator,
	cache *derivcache.Cache,
	video *videoproc.Processor,
	scheduler *pipeline.Scheduler,
	collages *collage.Builder,
	housekeeper *housekeeping.Scorer,
	photoRoots []string,
	collageAcceptDir string,
) *Server {
	return &Server{
		store:            st,
		search:           eng,
		mutator:          mut,
		cache:            cache,
		video:            video,
		scheduler:        scheduler,
		collages:         collages,
		housekeeper:      housekeeper,
		photoRoots:       photoRoots,
		collageAcceptDir: collageAcceptDir,
	}
}

// NewRouter builds the complete route table, wrapped in the same
// logging/compression/metrics middleware chain the teacher applies.
func (s *Server) NewRouter(logStaticFiles, logHealthChecks, metricsEnabled bool) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/photos", s.ListPhotos).Methods(http.MethodGet).Name("photos.list")
	api.HandleFunc("/photos/{hash}", s.GetPhoto).Methods(http.MethodGet).Name("photos.get")
	api.HandleFunc("/photos/{hash}", s.DeletePhoto).Methods(http.MethodDelete).Name("photos.delete")
	api.HandleFunc("/photos/{hash}/favorite", s.ToggleFavorite).Methods(http.MethodPost).Name("photos.favorite")
	api.HandleFunc("/photos/{hash}/capture", s.UpdateCapture).Methods(http.MethodPatch).Name("photos.capture")
	api.HandleFunc("/photos/{hash}/rotate", s.RotatePhoto).Methods(http.MethodPost).Name("photos.rotate")
	api.HandleFunc("/photos/{hash}/file", s.GetPhotoFile).Methods(http.MethodGet).Name("photos.file")
	api.HandleFunc("/photos/{hash}/thumbnail", s.GetThumbnail).Methods(http.MethodGet).Name("photos.thumbnail")

	api.HandleFunc("/search", s.Search).Methods(http.MethodGet).Name("search")
	api.HandleFunc("/timeline", s.Timeline).Methods(http.MethodGet).Name("timeline")

	api.HandleFunc("/status", s.IndexStatus).Methods(http.MethodGet).Name("status")
	api.HandleFunc("/status/rescan", s.TriggerRescan).Methods(http.MethodPost).Name("status.rescan")

	api.HandleFunc("/collages", s.ListCollages).Methods(http.MethodGet).Name("collages.list")
	api.HandleFunc("/collages/generate", s.GenerateCollages).Methods(http.MethodPost).Name("collages.generate")
	api.HandleFunc("/collages/{id}/accept", s.AcceptCollage).Methods(http.MethodPost).Name("collages.accept")
	api.HandleFunc("/collages/{id}/reject", s.RejectCollage).Methods(http.MethodPost).Name("collages.reject")

	api.HandleFunc("/housekeeping", s.ListHousekeeping).Methods(http.MethodGet).Name("housekeeping.list")
	api.HandleFunc("/housekeeping", s.RemoveHousekeeping).Methods(http.MethodDelete).Name("housekeeping.remove")

	r.HandleFunc("/healthz", s.Health).Methods(http.MethodGet).Name("health")

	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = logStaticFiles
	loggingConfig.LogHealthChecks = logHealthChecks

	if metricsEnabled {
		r.Use(mux.MiddlewareFunc(middleware.Metrics(middleware.DefaultMetricsConfig())))
	}
	r.Use(mux.MiddlewareFunc(middleware.Compression(middleware.DefaultCompressionConfig())))
	r.Use(mux.MiddlewareFunc(middleware.Logger(loggingConfig)))

	return r
}

// Health reports liveness; used by container orchestrators and the
// LOG_HEALTH_CHECKS-gated access log suppression.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "ok"})
}
