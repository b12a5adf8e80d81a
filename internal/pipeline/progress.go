// Package pipeline drives the five-phase indexing state machine: Discover,
// Metadata, Semantic, Derive, Housekeep. Each phase walks or queries the
// store for work, processes items through the component that owns that
// concern, and exposes a live progress snapshot so the HTTP surface can
// report indexing status without polling the filesystem itself.
package pipeline

import (
	"sync/atomic"
	"time"
)

// PhaseID names one of the five canonical scheduler phases. These strings
// are the wire identifiers the status endpoint reports; they are fixed and
// must not be renamed.
type PhaseID string

const (
	PhaseDiscover PhaseID = "discovering"
	PhaseMetadata PhaseID = "metadata"
	PhaseSemantic PhaseID = "semantic_vectors"
	PhaseDerive   PhaseID = "collages"
	PhaseHousekeep PhaseID = "housekeeping"
)

// State is a phase's current run state.
type State string

const (
	StatePending State = "pending"
	StateActive  State = "active"
	StateDone    State = "done"
	StateError   State = "error"
)

// Kind distinguishes a phase whose total item count is known up front
// (Metadata, Semantic) from one that is not (Discover walks an unknown
// tree; Derive/Housekeep run a fixed procedure rather than N discrete
// items with a predictable count).
type Kind string

const (
	KindDeterminate   Kind = "determinate"
	KindIndeterminate Kind = "indeterminate"
)

// Status is an immutable snapshot of one phase's progress, safe to read
// concurrently with the phase that produces it.
type Status struct {
	Phase       PhaseID `json:"phase"`
	State       State   `json:"state"`
	Kind        Kind    `json:"kind"`
	Processed   int64   `json:"processed"`
	Total       *int64  `json:"total,omitempty"`
	Errors      int64   `json:"errors"`
	CurrentItem string  `json:"currentItem,omitempty"`
}

// tracker holds one phase's live counters behind atomics plus an
// atomic.Value snapshot, mirroring the teacher's IndexProgress/atomic.Value
// pattern: writers mutate counters with no locking, readers always see a
// internally-consistent (if slightly stale) snapshot rather than a
// torn read across multiple fields.
type tracker struct {
	phase     PhaseID
	processed atomic.Int64
	errors    atomic.Int64
	current   atomic.Value // string
	snapshot  atomic.Value // Status
}

func newTracker(phase PhaseID) *tracker {
	t := &tracker{phase: phase}
	t.current.Store("")
	t.snapshot.Store(Status{Phase: phase, State: StatePending, Kind: KindIndeterminate})
	return t
}

// start resets counters and marks the phase active. total is nil for an
// indeterminate phase.
func (t *tracker) start(kind Kind, total *int64) {
	t.processed.Store(0)
	t.errors.Store(0)
	t.current.Store("")
	t.publish(StateActive, kind, total)
}

func (t *tracker) setCurrent(item string) {
	t.current.Store(item)
	s := t.Snapshot()
	t.publish(s.State, s.Kind, s.Total)
}

func (t *tracker) incProcessed() {
	t.processed.Add(1)
	s := t.Snapshot()
	t.publish(s.State, s.Kind, s.Total)
}

func (t *tracker) incError() {
	t.errors.Add(1)
	s := t.Snapshot()
	t.publish(s.State, s.Kind, s.Total)
}

func (t *tracker) finish(err error) {
	state := StateDone
	if err != nil {
		state = StateError
	}
	s := t.Snapshot()
	t.current.Store("")
	t.publish(state, s.Kind, s.Total)
}

func (t *tracker) publish(state State, kind Kind, total *int64) {
	current, _ := t.current.Load().(string)
	t.snapshot.Store(Status{
		Phase:       t.phase,
		State:       state,
		Kind:        kind,
		Processed:   t.processed.Load(),
		Total:       total,
		Errors:      t.errors.Load(),
		CurrentItem: current,
	})
}

// Snapshot returns the phase's current status.
func (t *tracker) Snapshot() Status {
	if s, ok := t.snapshot.Load().(Status); ok {
		return s
	}
	return Status{Phase: t.phase, State: StatePending, Kind: KindIndeterminate}
}

// runStart records when a phase's last run began, for health/status reporting.
type runStart struct {
	at atomic.Value // time.Time
}

func (r *runStart) set(t time.Time) { r.at.Store(t) }

func (r *runStart) get() time.Time {
	if t, ok := r.at.Load().(time.Time); ok {
		return t
	}
	return time.Time{}
}
