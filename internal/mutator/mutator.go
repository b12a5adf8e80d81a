// Package mutator performs the library's content-changing operations:
// lossless rotation, capture-info (EXIF time/GPS) rewrite, and deletion.
// Each changes a photo's identity (its content hash, or its existence) and
// must cascade that change to every place the old identity was cached —
// derivative thumbnails/transcodes and the semantic vector index.
package mutator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"turbopix/internal/derivcache"
	"turbopix/internal/logging"
	"turbopix/internal/metawriter"
	"turbopix/internal/store"
)

// jpegQuality is deliberately higher than the thumbnail cache's: this
// re-encodes the master file itself, not a derivative.
const jpegQuality = 95

var rotatable = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// validateRotatable rejects anything rotate() cannot safely handle: RAW and
// video are never rotatable in place, and only JPEG/PNG round-trip through
// metawriter for the EXIF orientation reset.
func validateRotatable(mediaType store.MediaType, ext string) error {
	if mediaType != store.MediaTypeImage {
		return fmt.Errorf("mutator: rotation is only supported for images, not %s", mediaType)
	}
	if !rotatable[ext] {
		return fmt.Errorf("mutator: rotation is not supported for format %s; only JPEG and PNG are", ext)
	}
	return nil
}

// Mutator applies rotations and deletions to photos, keeping the database
// row, the on-disk file, the derivative cache and the semantic vector index
// all consistent with each other.
type Mutator struct {
	store *store.Store
	cache *derivcache.Cache
}

// New creates a Mutator backed by st and cache.
func New(st *store.Store, cache *derivcache.Cache) *Mutator {
	return &Mutator{store: st, cache: cache}
}

// Rotate rotates the photo identified by hash by angle degrees (one of 90,
// 180, 270), bakes the stored EXIF orientation into the pixels first so the
// rotation applies to what a viewer actually sees, resets orientation to
// identity, recomputes the content hash, and cascades that identity change
// to the derivative cache and the semantic vector index.
func (m *Mutator) Rotate(ctx context.Context, hash string, angle int) error {
	if angle != 90 && angle != 180 && angle != 270 {
		return fmt.Errorf("mutator: angle must be 90, 180 or 270, got %d", angle)
	}

	photo, err := m.store.GetPhotoByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("mutator: looking up %s: %w", hash, err)
	}
	ext := strings.ToLower(filepath.Ext(photo.Path))
	if err := validateRotatable(photo.MediaType, ext); err != nil {
		return err
	}

	img, err := imaging.Open(photo.Path, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("mutator: opening %s: %w", photo.Path, err)
	}

	rotated := rotate(img, angle)
	bounds := rotated.Bounds()

	tmpPath := photo.Path + ".rotate.tmp"
	if err := encodeTo(tmpPath, ext, rotated); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mutator: encoding rotated image: %w", err)
	}

	identity := 1
	if err := metawriter.WriteFrom(photo.Path, tmpPath, metawriter.Update{Orientation: &identity}); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mutator: restoring EXIF tags on rotated image: %w", err)
	}

	newHash, err := hashFile(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mutator: hashing rotated image: %w", err)
	}

	if err := os.Rename(tmpPath, photo.Path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("mutator: replacing %s: %w", photo.Path, err)
	}

	tx, err := m.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("mutator: beginning transaction: %w", err)
	}
	err = m.store.RotatePhoto(ctx, tx, photo.Hash, newHash, photo.Path, bounds.Dx(), bounds.Dy())
	if err := m.store.EndBatch(tx, err); err != nil {
		return fmt.Errorf("mutator: committing rotation: %w", err)
	}

	if err := m.cache.Invalidate(hash); err != nil {
		logging.Warn("mutator: failed to invalidate derivative cache for old hash %s: %v", hash, err)
	}

	logging.Info("mutator: rotated %s by %d degrees, hash %s -> %s", photo.Path, angle, hash, newHash)
	return nil
}

// UpdateCapture rewrites the photo identified by hash's capture time and/or
// GPS location into its file's EXIF segment via the Metadata Writer,
// without recoding pixels, then recomputes the content hash and cascades
// that identity change to the database row, the derivative cache and the
// semantic vector index exactly like Rotate does.
func (m *Mutator) UpdateCapture(ctx context.Context, hash string, takenAt *time.Time, location *store.LocationInfo) error {
	photo, err := m.store.GetPhotoByHash(ctx, hash)
	if err != nil {
		return fmt.Errorf("mutator: looking up %s: %w", hash, err)
	}

	update := metawriter.Update{TakenAt: takenAt}
	if location != nil {
		lat, lon := location.Latitude, location.Longitude
		update.Latitude, update.Longitude = &lat, &lon
	}
	if err := metawriter.Write(photo.Path, update); err != nil {
		return fmt.Errorf("mutator: writing capture metadata to %s: %w", photo.Path, err)
	}

	newHash, err := hashFile(photo.Path)
	if err != nil {
		return fmt.Errorf("mutator: hashing %s: %w", photo.Path, err)
	}

	tx, err := m.store.BeginBatch(ctx)
	if err != nil {
		return fmt.Errorf("mutator: beginning transaction: %w", err)
	}
	err = m.store.UpdateCapture(ctx, tx, photo.Hash, newHash, photo.Path, takenAt, location)
	if err := m.store.EndBatch(tx, err); err != nil {
		return fmt.Errorf("mutator: committing capture update: %w", err)
	}

	if err := m.cache.Invalidate(hash); err != nil {
		logging.Warn("mutator: failed to invalidate derivative cache for old hash %s: %v", hash, err)
	}

	logging.Info("mutator: updated capture info for %s, hash %s -> %s", photo.Path, hash, newHash)
	return nil
}

// Delete removes the photo identified by hash: its database row and
// dependent vector/video-metadata/housekeeping rows, its derivative cache
// entries, and the file itself if still present.
func (m *Mutator) Delete(ctx context.Context, hash string) error {
	path, err := m.store.DeletePhoto(ctx, hash)
	if err != nil {
		return fmt.Errorf("mutator: deleting %s: %w", hash, err)
	}

	if err := m.cache.Invalidate(hash); err != nil {
		logging.Warn("mutator: failed to invalidate derivative cache for %s: %v", hash, err)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Warn("mutator: failed to remove file %s: %v", path, err)
	}

	logging.Info("mutator: deleted %s (%s)", path, hash)
	return nil
}

// rotate applies a clockwise rotation of angle degrees. imaging's own
// Rotate90/180/270 are each defined counter-clockwise, so 90/270 are
// swapped to match the clockwise convention the API documents.
func rotate(img image.Image, angle int) image.Image {
	switch angle {
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func encodeTo(path, ext string, img image.Image) error {
	var buf bytes.Buffer
	switch ext {
	case ".jpg", ".jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return err
		}
	case ".png":
		if err := png.Encode(&buf, img); err != nil {
			return err
		}
	default:
		return fmt.Errorf("mutator: unsupported encode target %s", ext)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
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
