package metrics

import (
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	"turbopix/internal/fsscan"
	"turbopix/internal/logging"
)

// LibraryStatsProvider reports aggregate library counts for periodic
// metrics collection.
type LibraryStatsProvider interface {
	LibraryStats() LibraryStats
}

// LibraryStats holds the current library-wide counts.
type LibraryStats struct {
	TotalImages    int
	TotalRaw       int
	TotalVideos    int
	TotalFavorites int
}

// Collector periodically samples Go runtime stats, store/cache file sizes,
// and library counts into the Prometheus metrics declared in metrics.go.
type Collector struct {
	statsProvider  LibraryStatsProvider
	dbPath         string
	derivCacheDir  string
	interval       time.Duration
	stopChan       chan struct{}
	lastGCCount    uint32
	lastPauseTotal uint64
}

// NewCollector creates a new metrics collector.
func NewCollector(provider LibraryStatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// SetDerivativeCacheDir sets the derivative cache directory to be sized.
func (c *Collector) SetDerivativeCacheDir(dir string) {
	c.derivCacheDir = dir
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection loop.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectMemoryMetrics()
	c.collectStoreSize()
	c.collectDerivativeCacheSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.LibraryStats()
	LibraryPhotosTotal.WithLabelValues("image").Set(float64(stats.TotalImages))
	LibraryPhotosTotal.WithLabelValues("raw").Set(float64(stats.TotalRaw))
	LibraryPhotosTotal.WithLabelValues("video").Set(float64(stats.TotalVideos))
	LibraryFavoritesTotal.Set(float64(stats.TotalFavorites))

	logging.Debug("metrics: collected library stats images=%d raw=%d video=%d favorites=%d",
		stats.TotalImages, stats.TotalRaw, stats.TotalVideos, stats.TotalFavorites)
}

func (c *Collector) collectMemoryMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	GoMemAllocBytes.Set(float64(memStats.Alloc))
	GoMemSysBytes.Set(float64(memStats.Sys))

	if memStats.NumGC > c.lastGCCount {
		GoGCRuns.Add(float64(memStats.NumGC - c.lastGCCount))
		c.lastGCCount = memStats.NumGC
	}

	if memStats.PauseTotalNs > c.lastPauseTotal {
		GoGCPauseTotalSeconds.Add(float64(memStats.PauseTotalNs-c.lastPauseTotal) / 1e9)
		c.lastPauseTotal = memStats.PauseTotalNs
	}
	if memStats.NumGC > 0 {
		idx := (memStats.NumGC + 255) % 256
		GoGCPauseLastSeconds.Set(float64(memStats.PauseNs[idx]) / 1e9)
	}

	GoGCCPUFraction.Set(memStats.GCCPUFraction)

	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < 1<<62 {
		GoMemLimit.Set(float64(limit))
	}
}

func (c *Collector) collectStoreSize() {
	if c.dbPath == "" {
		return
	}

	retryConfig := fsscan.DefaultRetryConfig()

	if fileInfo, err := fsscan.StatWithRetry(c.dbPath, retryConfig); err == nil {
		StoreSizeBytes.WithLabelValues("main").Set(float64(fileInfo.Size()))
	} else if !os.IsNotExist(err) {
		logging.Debug("metrics: failed to stat store file: %v", err)
	}

	if walInfo, err := fsscan.StatWithRetry(c.dbPath+"-wal", retryConfig); err == nil {
		StoreSizeBytes.WithLabelValues("wal").Set(float64(walInfo.Size()))
	} else {
		StoreSizeBytes.WithLabelValues("wal").Set(0)
	}

	if shmInfo, err := fsscan.StatWithRetry(c.dbPath+"-shm", retryConfig); err == nil {
		StoreSizeBytes.WithLabelValues("shm").Set(float64(shmInfo.Size()))
	} else {
		StoreSizeBytes.WithLabelValues("shm").Set(0)
	}
}

func (c *Collector) collectDerivativeCacheSize() {
	if c.derivCacheDir == "" {
		return
	}

	start := time.Now()
	size, count, err := c.dirSizeWithRetry(c.derivCacheDir)
	elapsed := time.Since(start)

	if err != nil {
		if !os.IsNotExist(err) {
			logging.Debug("metrics: failed to size derivative cache (took %v): %v", elapsed, err)
		}
		DerivativeCacheSizeBytes.Set(0)
		return
	}

	DerivativeCacheSizeBytes.Set(float64(size))
	DerivativeCacheCount.Set(float64(count))
}

// dirSizeWithRetry walks a directory tree using retry-aware filesystem
// operations, since the derivative cache and store both commonly live on
// network-attached volumes that intermittently return stale-handle errors.
func (c *Collector) dirSizeWithRetry(root string) (size int64, count int, err error) {
	retryConfig := fsscan.DefaultRetryConfig()

	var walkDir func(dir string) error
	walkDir = func(dir string) error {
		entries, err := fsscan.ReadDirWithRetry(dir, retryConfig)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			fullPath := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				if err := walkDir(fullPath); err != nil {
					logging.Debug("metrics: failed to walk subdirectory %s: %v", fullPath, err)
				}
				continue
			}

			info, err := fsscan.StatWithRetry(fullPath, retryConfig)
			if err != nil {
				logging.Debug("metrics: failed to stat file %s: %v", fullPath, err)
				continue
			}
			size += info.Size()
			count++
		}
		return nil
	}

	err = walkDir(root)
	return size, count, err
}
