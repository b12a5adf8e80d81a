package fsscan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"turbopix/internal/logging"
)

// Entry is one discovered filesystem entry, already stat'd.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Walk recursively walks root, retrying individual stat/readdir calls on
// NFS stale-handle errors, and invokes fn for every regular file whose
// extension (lower-cased, including the dot) is present in extensions.
// A directory that repeatedly fails to list is logged and skipped rather
// than aborting the whole walk, matching the discovery phase's resilience
// requirement against partially-unavailable network volumes.
func Walk(ctx context.Context, root string, extensions map[string]bool, fn func(Entry) error) error {
	config := DefaultRetryConfig()

	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		entries, err := ReadDirWithRetry(dir, config)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())

			if entry.IsDir() {
				if err := walkDir(full); err != nil {
					if ctx.Err() != nil {
						return err
					}
					logging.Warn("fsscan: skipping %s: %v", full, err)
					continue
				}
				continue
			}

			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if !extensions[ext] {
				continue
			}

			info, err := StatWithRetry(full, config)
			if err != nil {
				continue
			}
			if info.Mode()&os.ModeSymlink != 0 {
				continue
			}

			if err := fn(Entry{Path: full, Size: info.Size(), ModTime: info.ModTime()}); err != nil {
				return err
			}
		}
		return nil
	}

	return walkDir(root)
}
