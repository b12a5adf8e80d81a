package pipeline

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"turbopix/internal/store"
)

func TestTrackerLifecycle(t *testing.T) {
	tr := newTracker(PhaseMetadata)

	if s := tr.Snapshot(); s.State != StatePending {
		t.Fatalf("expected pending before start, got %s", s.State)
	}

	total := int64(3)
	tr.start(KindDeterminate, &total)
	if s := tr.Snapshot(); s.State != StateActive || s.Kind != KindDeterminate || *s.Total != 3 {
		t.Fatalf("unexpected snapshot after start: %+v", s)
	}

	tr.setCurrent("a.jpg")
	tr.incProcessed()
	tr.incError()

	s := tr.Snapshot()
	if s.CurrentItem != "a.jpg" {
		t.Errorf("expected current item a.jpg, got %q", s.CurrentItem)
	}
	if s.Processed != 1 {
		t.Errorf("expected processed=1, got %d", s.Processed)
	}
	if s.Errors != 1 {
		t.Errorf("expected errors=1, got %d", s.Errors)
	}

	tr.finish(nil)
	if s := tr.Snapshot(); s.State != StateDone {
		t.Errorf("expected done, got %s", s.State)
	}

	tr.start(KindIndeterminate, nil)
	tr.finish(errFake{})
	if s := tr.Snapshot(); s.State != StateError {
		t.Errorf("expected error state after failed finish, got %s", s.State)
	}
}

type errFake struct{}

func (errFake) Error() string { return "fake" }

func TestSupportedExtensionsCoversAllThreeKinds(t *testing.T) {
	exts := supportedExtensions()
	for _, e := range []string{".jpg", ".png", ".cr2", ".dng", ".mp4", ".mov"} {
		if !exts[e] {
			t.Errorf("expected %s to be a supported extension", e)
		}
	}
	if exts[".txt"] {
		t.Error(".txt should not be supported")
	}
}

func TestMediaTypeForExt(t *testing.T) {
	cases := map[string]store.MediaType{
		".jpg": store.MediaTypeImage,
		".png": store.MediaTypeImage,
		".cr2": store.MediaTypeRaw,
		".nef": store.MediaTypeRaw,
		".mp4": store.MediaTypeVideo,
		".mov": store.MediaTypeVideo,
	}
	for ext, want := range cases {
		if got := mediaTypeForExt(ext); got != want {
			t.Errorf("mediaTypeForExt(%s) = %s, want %s", ext, got, want)
		}
	}
}

func TestDebouncerCollapsesBurstIntoOneCall(t *testing.T) {
	var calls atomic.Int64
	var wg sync.WaitGroup
	wg.Add(1)

	d := newDebouncer(20*time.Millisecond, func() {
		calls.Add(1)
		wg.Done()
	})

	for i := 0; i < 5; i++ {
		d.trigger()
		time.Sleep(2 * time.Millisecond)
	}

	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("expected exactly 1 debounced call, got %d", n)
	}
}

func TestNextRescanRollsOverToTomorrow(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	next := nextRescan(now, 0, 5)
	want := time.Date(2026, 7, 31, 0, 5, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestNextRescanLaterTodayWhenNotYetPassed(t *testing.T) {
	now := time.Date(2026, 7, 30, 23, 0, 0, 0, time.UTC)
	next := nextRescan(now, 23, 30)
	want := time.Date(2026, 7, 30, 23, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig([]string{"/photos"})
	if cfg.RescanHour != 0 || cfg.VacuumMinute != 5 {
		t.Errorf("unexpected default rescan clock: %+v", cfg)
	}
	if cfg.DebounceDelay != 2*time.Second {
		t.Errorf("expected 2s debounce delay, got %s", cfg.DebounceDelay)
	}
}
