package collage

import (
	"fmt"
	"testing"
	"time"

	"turbopix/internal/store"
)

func photoAt(hash string, day string) *store.Photo {
	t, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return &store.Photo{Hash: hash, Path: hash + ".jpg", TakenAt: &t}
}

func TestClusterByDaySkipsUndatedPhotos(t *testing.T) {
	photos := []*store.Photo{
		photoAt("a", "2026-01-01"),
		photoAt("b", "2026-01-01"),
		{Hash: "c", Path: "c.jpg"}, // no TakenAt
		photoAt("d", "2026-01-02"),
	}

	clusters := clusterByDay(photos)
	if len(clusters["2026-01-01"]) != 2 {
		t.Errorf("expected 2 photos on 2026-01-01, got %d", len(clusters["2026-01-01"]))
	}
	if len(clusters["2026-01-02"]) != 1 {
		t.Errorf("expected 1 photo on 2026-01-02, got %d", len(clusters["2026-01-02"]))
	}
	if total := len(clusters["2026-01-01"]) + len(clusters["2026-01-02"]); total != 3 {
		t.Errorf("expected undated photo to be dropped, got %d total", total)
	}
}

func makePhotos(n int) []*store.Photo {
	out := make([]*store.Photo, n)
	for i := 0; i < n; i++ {
		out[i] = photoAt(fmt.Sprintf("p%d", i), "2026-01-01")
	}
	return out
}

func TestDistributeUsesTwoBucketsByDefault(t *testing.T) {
	buckets := distribute(makePhotos(10))
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets for 10 photos, got %d", len(buckets))
	}
}

func TestDistributeUsesThreeBucketsWhenDense(t *testing.T) {
	buckets := distribute(makePhotos(13))
	if len(buckets) != 3 {
		t.Fatalf("expected 3 buckets for 13 photos, got %d", len(buckets))
	}
}

func TestDistributeCapsEachBucketAtFour(t *testing.T) {
	buckets := distribute(makePhotos(20))
	for i, b := range buckets {
		if len(b) > tileCount {
			t.Errorf("bucket %d has %d photos, want <= %d", i, len(b), tileCount)
		}
	}
}

func TestDistributeRoundRobinsAcrossBuckets(t *testing.T) {
	photos := makePhotos(8) // exactly fills 2 buckets of 4
	buckets := distribute(photos)

	for i, b := range buckets {
		if len(b) != tileCount {
			t.Errorf("bucket %d: expected fully populated (%d), got %d", i, tileCount, len(b))
		}
	}
	// round-robin means bucket 0 gets photos at even indices, bucket 1 odd
	if buckets[0][0].Hash != "p0" || buckets[1][0].Hash != "p1" {
		t.Errorf("unexpected round-robin assignment: %+v", buckets)
	}
}

func TestDistributeDropsOverflowBeyondBucketCapacity(t *testing.T) {
	// 9 photos, 2 buckets of cap 4: 8 fit, 1 overflows and is dropped.
	buckets := distribute(makePhotos(9))
	total := 0
	for _, b := range buckets {
		total += len(b)
	}
	if total != 8 {
		t.Errorf("expected 8 photos placed (1 dropped), got %d", total)
	}
}
