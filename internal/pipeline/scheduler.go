package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"turbopix/internal/fsscan"
	"turbopix/internal/logging"
	"turbopix/internal/metadata"
	"turbopix/internal/metrics"
	"turbopix/internal/rawdecode"
	"turbopix/internal/semantic"
	"turbopix/internal/store"
	"turbopix/internal/videoproc"
	"turbopix/internal/workers"
)

// batchSize caps how many extracted rows accumulate before a single commit,
// matching the teacher's batched-commit discipline (there: 500 files per
// commit) and spec's "100-1000 rows per commit" guidance.
const batchSize = 500

// videoFrameCount is the default number of evenly-spaced frames sampled
// for a video's semantic embedding.
const videoFrameCount = 3

// batchCommitDelay is paused between batch commits so a long metadata run
// doesn't starve other database users, matching the teacher's batchDelay.
const batchCommitDelay = 10 * time.Millisecond

// DeriveRunner executes the Derive phase: building collages over recently
// indexed photos. Implemented by internal/collage.Builder; defined here as
// an interface so this package does not need to import collage (which in
// turn depends on store and derivcache, not on pipeline).
type DeriveRunner interface {
	Run(ctx context.Context, since time.Time) (processed int, err error)
}

// HousekeepRunner executes the Housekeeping phase: running the fixed
// semantic query set and populating the review candidate table.
// Implemented by internal/housekeeping.Scorer.
type HousekeepRunner interface {
	Run(ctx context.Context) (processed int, err error)
}

// Config configures a Scheduler.
type Config struct {
	Roots         []string
	DebounceDelay time.Duration // quiet period before a watched change triggers a re-index
	RescanHour    int           // local hour of day of the nightly full rescan (midnight = 0)
	VacuumMinute  int           // minute past RescanHour at which the nightly full rescan starts; its VACUUM runs when that rescan finishes, not on a timer of its own (spec: 5)
}

// DefaultConfig returns the scheduler defaults: a 2-second watch debounce
// (teacher's value) and a nightly full rescan starting at 00:05 local time,
// followed by its VACUUM once the rescan completes. Nothing fires at 00:00.
func DefaultConfig(roots []string) Config {
	return Config{
		Roots:         roots,
		DebounceDelay: 2 * time.Second,
		RescanHour:    0,
		VacuumMinute:  5,
	}
}

// Scheduler drives the five-phase indexing state machine at startup, on a
// daily clock, and in response to filesystem change notifications.
type Scheduler struct {
	cfg       Config
	store     *store.Store
	extractor *metadata.Extractor
	encoder   *semantic.Encoder // may be nil: semantic phase becomes a no-op
	video     *videoproc.Processor
	derive    DeriveRunner
	housekeep HousekeepRunner

	trackers map[PhaseID]*tracker
	lastRun  runStart

	runMu   sync.Mutex
	running bool

	watch    *watcher
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a Scheduler. encoder, derive, and housekeep may be nil if
// those components are not yet wired; the corresponding phases then become
// no-ops rather than failing the whole run.
func New(cfg Config, st *store.Store, extractor *metadata.Extractor, encoder *semantic.Encoder, video *videoproc.Processor, derive DeriveRunner, housekeep HousekeepRunner) *Scheduler {
	s := &Scheduler{
		cfg:       cfg,
		store:     st,
		extractor: extractor,
		encoder:   encoder,
		video:     video,
		derive:    derive,
		housekeep: housekeep,
		trackers:  make(map[PhaseID]*tracker),
		stopCh:    make(chan struct{}),
	}
	for _, id := range []PhaseID{PhaseDiscover, PhaseMetadata, PhaseSemantic, PhaseDerive, PhaseHousekeep} {
		s.trackers[id] = newTracker(id)
	}
	return s
}

// Status returns the current status of every phase, keyed by phase ID.
func (s *Scheduler) Status() map[PhaseID]Status {
	out := make(map[PhaseID]Status, len(s.trackers))
	for id, t := range s.trackers {
		out[id] = t.Snapshot()
	}
	return out
}

// LastRunAt returns when the most recent full pipeline run started.
func (s *Scheduler) LastRunAt() time.Time { return s.lastRun.get() }

// IsRunning reports whether a pipeline run is currently in progress.
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// Start kicks off the initial pipeline run in the background, begins
// watching the configured roots for changes, and arms the daily clock. It
// returns immediately; call Stop to shut everything down.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		if err := s.RunOnce(ctx, false); err != nil {
			logging.Error("pipeline: initial run failed: %v", err)
		}
	}()
	go s.watchRoots(ctx)
	go s.dailyClock(ctx)
}

// Stop halts the watcher and daily clock. In-flight phases finish their
// current item before observing the stop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	if s.watch != nil {
		s.watch.close()
	}
}

// TriggerRescan asynchronously starts a full pipeline run (including
// orphan cleanup), unless one is already in progress.
func (s *Scheduler) TriggerRescan() {
	go func() {
		if err := s.RunOnce(context.Background(), true); err != nil {
			logging.Error("pipeline: triggered rescan failed: %v", err)
		}
	}()
}

// RunOnce executes Discover, Metadata, Semantic, Derive, and Housekeep in
// order. If fullRescan is true, orphaned rows (files no longer present on
// disk) are deleted after Metadata completes. A run already in progress
// causes this call to return immediately without error, matching the
// teacher's tryStartIndexing/finishIndexing single-flight discipline.
func (s *Scheduler) RunOnce(ctx context.Context, fullRescan bool) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		logging.Info("pipeline: run already in progress, skipping")
		return nil
	}
	s.running = true
	s.runMu.Unlock()
	defer func() {
		s.runMu.Lock()
		s.running = false
		s.runMu.Unlock()
	}()

	s.lastRun.set(time.Now())
	start := time.Now()
	logging.Info("pipeline: starting run (fullRescan=%v)", fullRescan)

	entries, err := s.runDiscover(ctx)
	if err != nil {
		return fmt.Errorf("discover phase: %w", err)
	}

	if err := s.runMetadata(ctx, entries); err != nil {
		return fmt.Errorf("metadata phase: %w", err)
	}

	if fullRescan {
		existing := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			existing[e.Path] = struct{}{}
		}
		deleted, err := s.store.DeleteOrphans(ctx, existing)
		if err != nil {
			logging.Error("pipeline: deleting orphans: %v", err)
		} else if deleted > 0 {
			logging.Info("pipeline: removed %d orphaned rows", deleted)
		}
	}

	if err := s.runSemantic(ctx); err != nil {
		logging.Error("pipeline: semantic phase: %v", err)
	}
	if err := s.runDerive(ctx); err != nil {
		logging.Error("pipeline: derive phase: %v", err)
	}
	if err := s.runHousekeep(ctx); err != nil {
		logging.Error("pipeline: housekeep phase: %v", err)
	}

	if fullRescan {
		if err := s.store.Vacuum(ctx); err != nil {
			logging.Error("pipeline: vacuum: %v", err)
		}
	}

	logging.Info("pipeline: run finished in %s", time.Since(start))
	return nil
}

// phaseMetrics records a phase's run-count/duration/running-gauge metrics
// around fn's execution.
func phaseMetrics(phase PhaseID, fn func() error) error {
	metrics.PipelinePhaseRunning.WithLabelValues(string(phase)).Set(1)
	metrics.PipelinePhaseRunsTotal.WithLabelValues(string(phase)).Inc()
	start := time.Now()
	defer func() {
		metrics.PipelinePhaseDuration.WithLabelValues(string(phase)).Observe(time.Since(start).Seconds())
		metrics.PipelinePhaseRunning.WithLabelValues(string(phase)).Set(0)
	}()
	return fn()
}

// runDiscover walks the configured roots for supported media, an
// indeterminate-total phase since the tree size is unknown in advance.
func (s *Scheduler) runDiscover(ctx context.Context) ([]fsscan.Entry, error) {
	t := s.trackers[PhaseDiscover]
	t.start(KindIndeterminate, nil)

	var entries []fsscan.Entry
	err := phaseMetrics(PhaseDiscover, func() error {
		exts := supportedExtensions()
		for _, root := range s.cfg.Roots {
			err := fsscan.Walk(ctx, root, exts, func(e fsscan.Entry) error {
				entries = append(entries, e)
				t.setCurrent(e.Path)
				t.incProcessed()
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	t.finish(err)
	return entries, err
}

// runMetadata extracts and upserts metadata for every discovered entry
// whose (path, size, mtime) differ from what's already stored, skipping
// unchanged files. Extraction runs across a bounded worker pool; database
// writes are serialized into batches of batchSize rows per commit.
func (s *Scheduler) runMetadata(ctx context.Context, entries []fsscan.Entry) error {
	t := s.trackers[PhaseMetadata]
	total := int64(len(entries))
	t.start(KindDeterminate, &total)

	type result struct {
		photo   *store.Photo
		changed bool
		err     error
		path    string
	}

	jobs := make(chan fsscan.Entry)
	results := make(chan result)
	var wg sync.WaitGroup

	workerCount := workers.ForIO(0)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				t.setCurrent(e.Path)
				photo, changed, err := s.extractOne(ctx, e)
				results <- result{photo: photo, changed: changed, err: err, path: e.Path}
			}
		}()
	}

	// Feed jobs, stopping early (but always draining to a clean close) on
	// cancellation so workers already ranging over jobs never block
	// forever waiting for a send that will never come.
	go func() {
	feed:
		for _, e := range entries {
			select {
			case jobs <- e:
			case <-s.stopCh:
				break feed
			case <-ctx.Done():
				break feed
			}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	var batch []*store.Photo
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := s.store.BeginBatch(ctx)
		if err != nil {
			return err
		}
		var upsertErr error
		for _, p := range batch {
			if upsertErr = s.store.UpsertPhoto(ctx, tx, p); upsertErr != nil {
				break
			}
		}
		if err := s.store.EndBatch(tx, upsertErr); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	var flushErr error
	for r := range results {
		switch {
		case r.err != nil:
			logging.Warn("pipeline: metadata extraction failed for %s: %v", r.path, r.err)
			metrics.PipelineItemsProcessed.WithLabelValues(string(PhaseMetadata), "error").Inc()
			t.incError()
			t.incProcessed()
		case !r.changed:
			metrics.PipelineItemsProcessed.WithLabelValues(string(PhaseMetadata), "unchanged").Inc()
			t.incProcessed()
		default:
			batch = append(batch, r.photo)
			metrics.PipelineItemsProcessed.WithLabelValues(string(PhaseMetadata), "success").Inc()
			t.incProcessed()
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					flushErr = err
					break
				}
				time.Sleep(batchCommitDelay)
			}
		}
	}
	if flushErr == nil {
		flushErr = flush()
	}
	t.finish(flushErr)
	return flushErr
}

// extractOne extracts the metadata envelope and content hash for a single
// discovered entry, returning changed=false if an unchanged row already
// exists at this path (same size and mtime), in which case no hashing or
// extraction work is performed.
func (s *Scheduler) extractOne(ctx context.Context, e fsscan.Entry) (*store.Photo, bool, error) {
	existing, err := s.store.GetPhotoByPath(ctx, e.Path)
	if err == nil && existing.FileSize == e.Size && existing.FileModified.Equal(e.ModTime) {
		return nil, false, nil
	}

	ext := strings.ToLower(filepath.Ext(e.Path))
	mediaType := mediaTypeForExt(ext)

	var (
		env     store.Envelope
		takenAt *time.Time
	)
	switch mediaType {
	case store.MediaTypeVideo:
		env, err = s.extractor.ExtractVideo(ctx, e.Path)
		if err != nil {
			return nil, false, err
		}
	default:
		env, err = s.extractor.ExtractImage(e.Path)
		if err != nil {
			return nil, false, err
		}
		takenAt = s.extractor.TakenAt(e.Path)
	}
	if takenAt == nil {
		mtime := e.ModTime
		takenAt = &mtime
	}

	hash, err := hashFile(e.Path)
	if err != nil {
		return nil, false, fmt.Errorf("hashing %s: %w", e.Path, err)
	}

	photo := &store.Photo{
		Hash:         hash,
		Path:         e.Path,
		FileSize:     e.Size,
		FileModified: e.ModTime,
		MediaType:    mediaType,
		TakenAt:      takenAt,
		Metadata:     env,
	}
	if env.Camera != nil {
		photo.CameraMake = env.Camera.Make
		photo.CameraModel = env.Camera.Model
	}
	return photo, true, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// runSemantic computes and stores a vector for every photo not yet
// indexed (spec: total = rows where semantic_vector_indexed=false).
func (s *Scheduler) runSemantic(ctx context.Context) error {
	t := s.trackers[PhaseSemantic]
	if s.encoder == nil {
		zero := int64(0)
		t.start(KindDeterminate, &zero)
		t.finish(nil)
		return nil
	}

	pending, err := s.store.ListPendingSemantic(ctx)
	if err != nil {
		t.start(KindDeterminate, nil)
		t.finish(err)
		return err
	}
	total := int64(len(pending))
	t.start(KindDeterminate, &total)

	for _, photo := range pending {
		select {
		case <-s.stopCh:
			t.finish(nil)
			return nil
		case <-ctx.Done():
			t.finish(ctx.Err())
			return ctx.Err()
		default:
		}

		t.setCurrent(photo.Path)
		if err := s.encodeAndStore(ctx, photo); err != nil {
			logging.Warn("pipeline: semantic encode failed for %s: %v", photo.Path, err)
			metrics.PipelineItemsProcessed.WithLabelValues(string(PhaseSemantic), "error").Inc()
			t.incError()
			t.incProcessed()
			continue
		}
		metrics.PipelineItemsProcessed.WithLabelValues(string(PhaseSemantic), "success").Inc()
		t.incProcessed()
	}
	t.finish(nil)
	return nil
}

func (s *Scheduler) encodeAndStore(ctx context.Context, photo *store.Photo) error {
	var embedding []float32

	if photo.MediaType == store.MediaTypeVideo {
		if s.video == nil {
			return fmt.Errorf("pipeline: no video processor configured")
		}
		info, err := s.video.Probe(ctx, photo.Path)
		if err != nil {
			return err
		}
		frames, times, err := s.video.SampleFrames(ctx, photo.Path, info, videoFrameCount)
		if err != nil {
			return err
		}
		embedding, err = s.encoder.EncodeFrames(frames)
		if err != nil {
			return err
		}
		framesJSON, err := marshalFloats(times)
		if err != nil {
			return err
		}
		if err := s.store.UpsertVideoSemanticMetadata(ctx, photo.Path, len(frames), framesJSON, semantic.ModelVersion); err != nil {
			return err
		}
	} else {
		img, err := decodeForEncoding(photo)
		if err != nil {
			return err
		}
		embedding, err = s.encoder.EncodeImage(img)
		if err != nil {
			return err
		}
	}

	if err := s.store.UpsertVector(ctx, photo.Path, embedding); err != nil {
		return err
	}
	return s.store.MarkSemanticComplete(ctx, photo.Hash, time.Now())
}

// decodeForEncoding picks the right decode path for a still image's
// semantic encode: RAW sensor decode or a plain oriented image open,
// mirroring derivcache's own source-decode split for the same media kinds.
func decodeForEncoding(photo *store.Photo) (image.Image, error) {
	if rawdecode.IsRawFile(photo.Path) {
		return rawdecode.Decode(photo.Path)
	}
	return openOriented(photo.Path)
}

// runDerive invokes the configured collage builder over the lookback
// window (spec: "the last 365 days"), an indeterminate phase.
func (s *Scheduler) runDerive(ctx context.Context) error {
	t := s.trackers[PhaseDerive]
	t.start(KindIndeterminate, nil)
	if s.derive == nil {
		t.finish(nil)
		return nil
	}
	processed, err := s.derive.Run(ctx, time.Now().AddDate(-1, 0, 0))
	for i := 0; i < processed; i++ {
		t.incProcessed()
	}
	t.finish(err)
	return err
}

// runHousekeep invokes the configured housekeeping scorer, an
// indeterminate phase.
func (s *Scheduler) runHousekeep(ctx context.Context) error {
	t := s.trackers[PhaseHousekeep]
	t.start(KindIndeterminate, nil)
	if s.housekeep == nil {
		t.finish(nil)
		return nil
	}
	processed, err := s.housekeep.Run(ctx)
	for i := 0; i < processed; i++ {
		t.incProcessed()
	}
	t.finish(err)
	return err
}
