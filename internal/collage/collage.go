// Package collage implements the Collage Builder: it clusters photos by
// capture day, composes dense days into 2x2 4K grids, and stages the result
// for a human accept/reject decision.
package collage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/disintegration/imaging"

	"turbopix/internal/derivcache"
	"turbopix/internal/logging"
	"turbopix/internal/store"
)

const (
	canvasWidth  = 3840
	canvasHeight = 2160
	gridCols     = 2
	gridRows     = 2
	tileCount    = gridCols * gridRows

	// minPhotosPerDay is the dense-cluster threshold: fewer than this and a
	// day isn't worth collaging.
	minPhotosPerDay = 10
	// denseDayThreshold bumps a cluster from 2 collages to 3.
	denseDayThreshold = 12

	// tileSourceSize is the thumbnail bounding box requested per source
	// photo before it's resized and cropped to exactly fill its cell; it
	// equals a grid cell's width (cells are 1920x1080), so a landscape
	// source is only cropped while a portrait one is scaled up to the width.
	tileSourceSize = 1920

	jpegQuality = 90
)

// Builder composes and stages collages. It satisfies pipeline.DeriveRunner.
type Builder struct {
	store      *store.Store
	cache      *derivcache.Cache
	stagingDir string
}

// New creates a Builder that stages collage JPEGs under stagingDir.
func New(st *store.Store, cache *derivcache.Cache, stagingDir string) *Builder {
	return &Builder{store: st, cache: cache, stagingDir: stagingDir}
}

// Run clusters photos taken since the given time into dense days, composes
// every fully-populated 4-tile bucket, and stages the result. It returns how
// many collages were produced.
func (b *Builder) Run(ctx context.Context, since time.Time) (int, error) {
	if err := os.MkdirAll(b.stagingDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating collage staging dir: %w", err)
	}

	photos, err := b.store.PhotosTakenSince(ctx, since)
	if err != nil {
		return 0, err
	}

	byDay := clusterByDay(photos)
	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	processed := 0
	for _, day := range days {
		dayPhotos := byDay[day]
		if len(dayPhotos) < minPhotosPerDay {
			continue
		}

		buckets := distribute(dayPhotos)
		n := 0
		for _, bucket := range buckets {
			if len(bucket) != tileCount {
				continue
			}
			n++
			if err := ctx.Err(); err != nil {
				return processed, err
			}

			canvas, err := b.compose(ctx, bucket)
			if err != nil {
				logging.Warn("collage: composing %s collage %d failed: %v", day, n, err)
				continue
			}

			filename := fmt.Sprintf("collage_%s_%d.jpg", day, n)
			path := filepath.Join(b.stagingDir, filename)
			if err := saveJPEG(canvas, path); err != nil {
				logging.Warn("collage: saving %s failed: %v", path, err)
				continue
			}

			hashes := make([]string, len(bucket))
			for i, p := range bucket {
				hashes[i] = p.Hash
			}
			if _, err := b.store.InsertCollage(ctx, day, path, hashes); err != nil {
				logging.Warn("collage: recording %s failed: %v", path, err)
				continue
			}
			processed++
		}
	}

	return processed, nil
}

// clusterByDay groups photos by their capture date's UTC calendar day.
func clusterByDay(photos []*store.Photo) map[string][]*store.Photo {
	out := make(map[string][]*store.Photo)
	for _, p := range photos {
		if p.TakenAt == nil {
			continue
		}
		day := p.TakenAt.UTC().Format("2006-01-02")
		out[day] = append(out[day], p)
	}
	return out
}

// distribute spreads a day's photos round-robin into 2 buckets (3 if the
// day has more than denseDayThreshold photos), each capped at tileCount.
// Buckets that never fill to exactly tileCount are dropped by the caller:
// only fully populated collages are emitted.
func distribute(dayPhotos []*store.Photo) [][]*store.Photo {
	numBuckets := 2
	if len(dayPhotos) > denseDayThreshold {
		numBuckets = 3
	}
	buckets := make([][]*store.Photo, numBuckets)

	i := 0
	for _, p := range dayPhotos {
		tries := 0
		for len(buckets[i%numBuckets]) >= tileCount && tries < numBuckets {
			i++
			tries++
		}
		if tries == numBuckets {
			break // every bucket is full
		}
		buckets[i%numBuckets] = append(buckets[i%numBuckets], p)
		i++
	}
	return buckets
}

// compose renders exactly tileCount photos into a 2x2 grid on a
// canvasWidth x canvasHeight canvas, each source resized-to-fill its cell
// with a Lanczos3 filter and overlaid at the cell's origin, grounded on the
// teacher's drawFourImages grid layout (without its decorative folder
// chrome, since a collage is a plain photo grid, not a folder icon).
func (b *Builder) compose(ctx context.Context, bucket []*store.Photo) (image.Image, error) {
	cellW := canvasWidth / gridCols
	cellH := canvasHeight / gridRows

	canvas := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))

	for idx, photo := range bucket {
		tile, err := b.loadTile(ctx, photo)
		if err != nil {
			return nil, fmt.Errorf("loading tile for %s: %w", photo.Path, err)
		}
		filled := imaging.Fill(tile, cellW, cellH, imaging.Center, imaging.Lanczos)

		col := idx % gridCols
		row := idx / gridCols
		origin := image.Pt(col*cellW, row*cellH)
		dstRect := image.Rectangle{Min: origin, Max: origin.Add(image.Pt(cellW, cellH))}
		draw.Draw(canvas, dstRect, filled, image.Point{}, draw.Src)
	}

	return canvas, nil
}

// loadTile fetches (or generates) a thumbnail-sized decode of photo through
// the shared derivative cache, so a collage never re-decodes a RAW file or
// re-probes a video that's already been thumbnailed elsewhere.
func (b *Builder) loadTile(ctx context.Context, photo *store.Photo) (image.Image, error) {
	isVideo := photo.MediaType == store.MediaTypeVideo
	isRaw := photo.MediaType == store.MediaTypeRaw

	data, err := b.cache.GetOrCreateThumbnail(ctx, photo.Hash, photo.Path, tileSourceSize, isVideo, isRaw)
	if err != nil {
		return nil, err
	}
	return jpeg.Decode(bytes.NewReader(data))
}

func saveJPEG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality})
}
