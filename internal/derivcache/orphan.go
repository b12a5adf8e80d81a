package derivcache

import (
	"os"
	"path/filepath"
	"strings"

	"turbopix/internal/logging"
)

// Sweep removes every cached thumbnail and transcode whose hash is not in
// liveHashes. Unlike a path-keyed cache, a content-hash-addressed cache
// needs no per-entry metadata file to know what's orphaned — the hash
// embedded in the filename is looked up directly against the still-live
// set from the store.
func Sweep(root string, liveHashes map[string]struct{}) (removed int, err error) {
	prefixDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	for _, prefixDir := range prefixDirs {
		if !prefixDir.IsDir() || prefixDir.Name() == "transcoded" {
			continue
		}
		dirPath := filepath.Join(root, prefixDir.Name())
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			logging.Warn("derivcache: failed to read %s during sweep: %v", dirPath, err)
			continue
		}
		for _, entry := range entries {
			hash := hashFromThumbnailName(entry.Name())
			if hash == "" {
				continue
			}
			if _, live := liveHashes[hash]; !live {
				if err := os.Remove(filepath.Join(dirPath, entry.Name())); err != nil {
					logging.Warn("derivcache: failed to remove orphaned thumbnail %s: %v", entry.Name(), err)
					continue
				}
				removed++
			}
		}
	}

	transcodeDir := filepath.Join(root, "transcoded")
	entries, err := os.ReadDir(transcodeDir)
	if err == nil {
		for _, entry := range entries {
			hash := strings.TrimSuffix(entry.Name(), ".mp4")
			if _, live := liveHashes[hash]; !live {
				if err := os.Remove(filepath.Join(transcodeDir, entry.Name())); err != nil {
					logging.Warn("derivcache: failed to remove orphaned transcode %s: %v", entry.Name(), err)
					continue
				}
				removed++
			}
		}
	}

	if removed > 0 {
		logging.Info("derivcache: swept %d orphaned derivatives", removed)
	}

	return removed, nil
}

// hashFromThumbnailName extracts the hash portion of a "<hash>_<size>.jpg"
// cache filename, or "" if the name doesn't match that shape.
func hashFromThumbnailName(name string) string {
	if !strings.HasSuffix(name, ".jpg") {
		return ""
	}
	base := strings.TrimSuffix(name, ".jpg")
	idx := strings.LastIndex(base, "_")
	if idx == -1 {
		return ""
	}
	return base[:idx]
}
