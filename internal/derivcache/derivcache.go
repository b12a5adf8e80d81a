// Package derivcache generates and serves content-hash-addressed
// derivatives (thumbnails, video transcodes, collages) so the same media
// content never gets thumbnailed twice even if it moves on disk, and a
// mutation that changes a photo's hash naturally invalidates its old
// derivatives by simply no longer matching any cache key.
package derivcache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"turbopix/internal/logging"
	"turbopix/internal/metrics"
	"turbopix/internal/rawdecode"
	"turbopix/internal/videoproc"
)

// Kind labels the metrics this cache emits, matching the "kind" label on
// the derivative cache metric vectors.
type Kind string

const (
	KindThumbnail Kind = "thumbnail"
	KindTranscode Kind = "transcode"
	KindCollage   Kind = "collage"
)

// Cache generates and serves derivatives keyed by a media item's content
// hash, never its path.
type Cache struct {
	root      string
	video     *videoproc.Processor
	locksMu   sync.Mutex
	locks     map[string]*sync.Mutex
}

// New creates a Cache rooted at dir. video may be nil if video transcoding
// is not needed by the caller (e.g. a thumbnail-only consumer).
func New(dir string, video *videoproc.Processor) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating derivative cache dir %s: %w", dir, err)
	}
	return &Cache{
		root:  dir,
		video: video,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

func (c *Cache) lockFor(key string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	if m, ok := c.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	c.locks[key] = m
	return m
}

// ThumbnailPath returns the content-addressed path a thumbnail of the given
// size for hash would live at: <root>/<hash[:3]>/<hash>_<size>.jpg.
func (c *Cache) ThumbnailPath(hash string, size int) string {
	prefix := hash
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	return filepath.Join(c.root, prefix, fmt.Sprintf("%s_%d.jpg", hash, size))
}

// TranscodePath returns the content-addressed path a playback transcode of
// hash would live at.
func (c *Cache) TranscodePath(hash string) string {
	return filepath.Join(c.root, "transcoded", hash+".mp4")
}

// GetOrCreateThumbnail returns the bytes of a JPEG thumbnail that fits
// inside a size x size box (aspect ratio preserved) for the media item at
// sourcePath whose content hash is hash, generating and caching it on first
// request.
func (c *Cache) GetOrCreateThumbnail(ctx context.Context, hash, sourcePath string, size int, isVideo, isRaw bool) ([]byte, error) {
	cachePath := c.ThumbnailPath(hash, size)

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.DerivativeCacheHits.WithLabelValues(string(KindThumbnail)).Inc()
		return data, nil
	}
	metrics.DerivativeCacheMisses.WithLabelValues(string(KindThumbnail)).Inc()

	lock := c.lockFor(cachePath)
	lock.Lock()
	defer func() {
		lock.Unlock()
		c.locksMu.Lock()
		delete(c.locks, cachePath)
		c.locksMu.Unlock()
	}()

	if data, err := os.ReadFile(cachePath); err == nil {
		metrics.DerivativeCacheHits.WithLabelValues(string(KindThumbnail)).Inc()
		return data, nil
	}

	start := time.Now()
	defer func() {
		metrics.DerivativeGenerationDuration.WithLabelValues(string(KindThumbnail)).Observe(time.Since(start).Seconds())
	}()

	img, err := c.decodeSource(ctx, sourcePath, isVideo, isRaw)
	if err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(string(KindThumbnail), "error").Inc()
		return nil, fmt.Errorf("decoding %s for thumbnail: %w", sourcePath, err)
	}

	thumb := imaging.Fit(img, size, size, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: 85}); err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(string(KindThumbnail), "error").Inc()
		return nil, fmt.Errorf("encoding thumbnail for %s: %w", sourcePath, err)
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err != nil {
		return nil, fmt.Errorf("creating thumbnail cache dir: %w", err)
	}
	if err := os.WriteFile(cachePath, buf.Bytes(), 0o644); err != nil {
		logging.Warn("derivcache: failed to write thumbnail cache %s: %v", cachePath, err)
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(string(KindThumbnail), "success").Inc()
	return buf.Bytes(), nil
}

// decodeSource picks the right decode path for a source file: RAW sensor
// decode, a video frame grab, or a plain image decode.
func (c *Cache) decodeSource(ctx context.Context, path string, isVideo, isRaw bool) (image.Image, error) {
	switch {
	case isRaw:
		return rawdecode.Decode(path)
	case isVideo:
		if c.video == nil {
			return nil, fmt.Errorf("derivcache: no video processor configured")
		}
		info, err := c.video.Probe(ctx, path)
		if err != nil {
			return nil, err
		}
		frames, _, err := c.video.SampleFrames(ctx, path, info, 1)
		if err != nil {
			return nil, err
		}
		return frames[0], nil
	default:
		return imaging.Open(path, imaging.AutoOrientation(true))
	}
}

// GetOrCreateTranscode returns the cache path of a browser-playable H.264
// transcode of the video at sourcePath, generating it first if needed.
func (c *Cache) GetOrCreateTranscode(ctx context.Context, hash, sourcePath string, targetWidth int) (string, error) {
	if c.video == nil {
		return "", fmt.Errorf("derivcache: no video processor configured")
	}

	cachePath := c.TranscodePath(hash)
	if _, err := os.Stat(cachePath); err == nil {
		metrics.DerivativeCacheHits.WithLabelValues(string(KindTranscode)).Inc()
		return cachePath, nil
	}
	metrics.DerivativeCacheMisses.WithLabelValues(string(KindTranscode)).Inc()

	start := time.Now()
	info, err := c.video.Probe(ctx, sourcePath)
	if err != nil {
		return "", fmt.Errorf("probing %s: %w", sourcePath, err)
	}

	if err := c.video.TranscodeToCache(ctx, sourcePath, cachePath, targetWidth, info); err != nil {
		metrics.DerivativeGenerationsTotal.WithLabelValues(string(KindTranscode), "error").Inc()
		return "", err
	}

	metrics.DerivativeGenerationsTotal.WithLabelValues(string(KindTranscode), "success").Inc()
	metrics.DerivativeGenerationDuration.WithLabelValues(string(KindTranscode)).Observe(time.Since(start).Seconds())
	return cachePath, nil
}

// Invalidate removes every cached derivative for hash: all thumbnail
// sizes plus any transcode. Called when a mutation changes a photo's
// content hash, since the old hash's derivatives can never be served
// again.
func (c *Cache) Invalidate(hash string) error {
	prefix := hash
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	dir := filepath.Join(c.root, prefix)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading thumbnail cache dir %s: %w", dir, err)
	}

	for _, e := range entries {
		if len(e.Name()) >= len(hash) && e.Name()[:len(hash)] == hash {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				logging.Warn("derivcache: failed to remove %s: %v", e.Name(), err)
			}
		}
	}

	transcodePath := c.TranscodePath(hash)
	if err := os.Remove(transcodePath); err != nil && !os.IsNotExist(err) {
		logging.Warn("derivcache: failed to remove transcode %s: %v", transcodePath, err)
	}

	return nil
}
