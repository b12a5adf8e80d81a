// Package fsscan provides retry-aware filesystem primitives and the
// discovery walk used by the pipeline scheduler's discover phase. Network-
// attached media volumes intermittently return stale file handle errors;
// every primitive here absorbs a bounded number of those before giving up.
package fsscan

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"turbopix/internal/logging"
)

// VolumeResolver maps file paths to known volume names for metric labeling,
// using longest-prefix matching on absolute paths.
type VolumeResolver struct {
	mounts []volumeMount
}

type volumeMount struct {
	path string // absolute path with trailing slash (e.g., "/media/")
	name string // volume label (e.g., "media")
}

// NewVolumeResolver creates a resolver from a map of volume name -> absolute path.
func NewVolumeResolver(volumes map[string]string) *VolumeResolver {
	mounts := make([]volumeMount, 0, len(volumes))
	for name, path := range volumes {
		absPath, err := filepath.Abs(path)
		if err != nil {
			absPath = path
		}
		if !strings.HasSuffix(absPath, "/") {
			absPath += "/"
		}
		mounts = append(mounts, volumeMount{path: absPath, name: name})
	}

	sort.Slice(mounts, func(i, j int) bool {
		return len(mounts[i].path) > len(mounts[j].path)
	})

	return &VolumeResolver{mounts: mounts}
}

// Resolve returns the volume name for a given file path, or "unknown" if
// the path doesn't match any configured volume.
func (vr *VolumeResolver) Resolve(path string) string {
	if vr == nil {
		return "unknown"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "unknown"
	}

	for _, mount := range vr.mounts {
		if strings.HasPrefix(absPath+"/", mount.path) || strings.HasPrefix(absPath, mount.path) {
			return mount.name
		}
	}

	return "unknown"
}

var defaultResolver *VolumeResolver

// SetDefaultVolumeResolver sets the package-level volume resolver. Call
// once at startup after loading configuration.
func SetDefaultVolumeResolver(vr *VolumeResolver) {
	defaultResolver = vr
}

// RetryConfig configures retry behavior for filesystem operations.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// VolumeResolver overrides the package-level resolver for this operation.
	VolumeResolver *VolumeResolver
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

func (c *RetryConfig) resolveVolume(path string) string {
	if c.VolumeResolver != nil {
		return c.VolumeResolver.Resolve(path)
	}
	return defaultResolver.Resolve(path)
}

func isNFSStaleError(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// StatWithRetry performs os.Stat with retry logic for NFS stale file handle errors.
func StatWithRetry(path string, config RetryConfig) (os.FileInfo, error) {
	start := time.Now()
	volume := config.resolveVolume(path)
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		info, err := os.Stat(path)
		if err == nil {
			if attempt > 0 && observe() != nil {
				logging.Info("fsscan: stat succeeded on retry %d for %s", attempt, path)
				observe().ObserveRetrySuccess("stat", volume)
			}
			if observe() != nil {
				observe().ObserveRetryDuration("stat", volume, time.Since(start).Seconds())
			}
			return info, nil
		}

		lastErr = err
		if !isNFSStaleError(err) {
			if observe() != nil {
				observe().ObserveRetryDuration("stat", volume, time.Since(start).Seconds())
			}
			return nil, err
		}

		if observe() != nil {
			observe().ObserveStaleError("stat", volume)
		}

		if attempt < config.MaxRetries {
			if observe() != nil {
				observe().ObserveRetryAttempt("stat", volume)
			}
			logging.Debug("fsscan: stat stale file handle for %s, retrying in %v (attempt %d/%d)",
				path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("fsscan: stat failed after %d retries for %s: %v", config.MaxRetries, path, lastErr)
	if observe() != nil {
		observe().ObserveRetryFailure("stat", volume)
		observe().ObserveRetryDuration("stat", volume, time.Since(start).Seconds())
	}
	return nil, lastErr
}

// OpenWithRetry performs os.Open with retry logic for NFS stale file handle errors.
func OpenWithRetry(path string, config RetryConfig) (*os.File, error) {
	start := time.Now()
	volume := config.resolveVolume(path)
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		file, err := os.Open(path)
		if err == nil {
			if attempt > 0 && observe() != nil {
				logging.Info("fsscan: open succeeded on retry %d for %s", attempt, path)
				observe().ObserveRetrySuccess("open", volume)
			}
			if observe() != nil {
				observe().ObserveRetryDuration("open", volume, time.Since(start).Seconds())
			}
			return file, nil
		}

		lastErr = err
		if !isNFSStaleError(err) {
			if observe() != nil {
				observe().ObserveRetryDuration("open", volume, time.Since(start).Seconds())
			}
			return nil, err
		}

		if observe() != nil {
			observe().ObserveStaleError("open", volume)
		}

		if attempt < config.MaxRetries {
			if observe() != nil {
				observe().ObserveRetryAttempt("open", volume)
			}
			logging.Debug("fsscan: open stale file handle for %s, retrying in %v (attempt %d/%d)",
				path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("fsscan: open failed after %d retries for %s: %v", config.MaxRetries, path, lastErr)
	if observe() != nil {
		observe().ObserveRetryFailure("open", volume)
		observe().ObserveRetryDuration("open", volume, time.Since(start).Seconds())
	}
	return nil, lastErr
}

// ReadDirWithRetry performs os.ReadDir with retry logic for NFS stale file handle errors.
func ReadDirWithRetry(path string, config RetryConfig) ([]os.DirEntry, error) {
	start := time.Now()
	volume := config.resolveVolume(path)
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		entries, err := os.ReadDir(path)
		if err == nil {
			if attempt > 0 && observe() != nil {
				observe().ObserveRetrySuccess("readdir", volume)
			}
			if observe() != nil {
				observe().ObserveRetryDuration("readdir", volume, time.Since(start).Seconds())
			}
			return entries, nil
		}

		lastErr = err
		if !isNFSStaleError(err) {
			if observe() != nil {
				observe().ObserveRetryDuration("readdir", volume, time.Since(start).Seconds())
			}
			return nil, err
		}

		if observe() != nil {
			observe().ObserveStaleError("readdir", volume)
		}

		if attempt < config.MaxRetries {
			if observe() != nil {
				observe().ObserveRetryAttempt("readdir", volume)
			}
			time.Sleep(backoff)
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("fsscan: readdir failed after %d retries for %s: %v", config.MaxRetries, path, lastErr)
	if observe() != nil {
		observe().ObserveRetryFailure("readdir", volume)
		observe().ObserveRetryDuration("readdir", volume, time.Since(start).Seconds())
	}
	return nil, lastErr
}
