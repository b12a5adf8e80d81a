// Package config loads turbopix's configuration from the environment,
// resolves its derived filesystem layout, and logs the result, following
// the teacher's startup package's env-var/derived-path/logging pattern.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"turbopix/internal/logging"
)

// Config holds every setting turbopix reads once at startup.
type Config struct {
	DataPath   string
	PhotoPaths []string
	Port       string
	MetricsPort string
	Locale     string

	FFmpegPath  string
	FFprobePath string
	GPUAccel    string // "none", "auto", "nvidia", "vaapi", "videotoolbox"

	ModelBaseURL string

	DebounceDelay   time.Duration
	MetricsEnabled  bool
	LogStaticFiles  bool
	LogHealthChecks bool

	// Derived paths, all rooted under DataPath.
	DatabasePath      string
	ThumbnailCacheDir string
	ModelCacheDir     string
	CollageStagingDir string
	CollageAcceptDir  string
}

// LoadConfig reads and validates configuration from the environment,
// resolving every path to an absolute one and creating the directories
// turbopix owns (it never creates PhotoPaths; those are read-mostly and
// user-supplied).
func LoadConfig() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataPath := getEnv("DATA_PATH", "./data")
	photoPathsRaw := getEnv("PHOTO_PATHS", "./photos")
	port := getEnv("PORT", "18473")
	metricsPort := getEnv("METRICS_PORT", "9090")
	locale := getEnv("LOCALE", "en")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	ffprobePath := getEnv("FFPROBE_PATH", "ffprobe")
	gpuAccel := getEnv("GPU_ACCEL", "auto")
	modelBaseURL := getEnv("MODEL_BASE_URL", "https://huggingface.co/sentence-transformers/clip-ViT-B-32/resolve/main")
	debounceDelay := getEnvDuration("DEBOUNCE_DELAY", 2*time.Second)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	logStaticFiles := getEnvBool("LOG_STATIC_FILES", false)
	logHealthChecks := getEnvBool("LOG_HEALTH_CHECKS", true)

	dataPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("resolving DATA_PATH: %w", err)
	}

	var photoPaths []string
	for _, p := range strings.Split(photoPathsRaw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving PHOTO_PATHS entry %q: %w", p, err)
		}
		photoPaths = append(photoPaths, abs)
	}
	if len(photoPaths) == 0 {
		return nil, fmt.Errorf("PHOTO_PATHS resolved to no usable roots")
	}

	cfg := &Config{
		DataPath:          dataPath,
		PhotoPaths:        photoPaths,
		Port:              port,
		MetricsPort:       metricsPort,
		Locale:            locale,
		FFmpegPath:        ffmpegPath,
		FFprobePath:       ffprobePath,
		GPUAccel:          gpuAccel,
		ModelBaseURL:      modelBaseURL,
		DebounceDelay:     debounceDelay,
		MetricsEnabled:    metricsEnabled,
		LogStaticFiles:    logStaticFiles,
		LogHealthChecks:   logHealthChecks,
		DatabasePath:      filepath.Join(dataPath, "database", "turbopix.db"),
		ThumbnailCacheDir: filepath.Join(dataPath, "cache", "thumbnails"),
		ModelCacheDir:     filepath.Join(dataPath, "models"),
		CollageStagingDir: filepath.Join(dataPath, "collages", "staging"),
		CollageAcceptDir:  filepath.Join(dataPath, "collages", "accepted"),
	}

	logging.Info("  DATA_PATH:     %s", cfg.DataPath)
	logging.Info("  PHOTO_PATHS:   %s", strings.Join(cfg.PhotoPaths, ", "))
	logging.Info("  PORT:          %s", cfg.Port)
	logging.Info("  METRICS_PORT:  %s", cfg.MetricsPort)
	logging.Info("  LOCALE:        %s", cfg.Locale)
	logging.Info("  LOG_LEVEL:     %s", logging.GetLevel())

	for _, dir := range []string{
		filepath.Dir(cfg.DatabasePath),
		cfg.ThumbnailCacheDir,
		cfg.ModelCacheDir,
		cfg.CollageStagingDir,
		cfg.CollageAcceptDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	for _, root := range cfg.PhotoPaths {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			logging.Warn("  photo root %s is not accessible yet: %v", root, err)
		}
	}

	return cfg, nil
}

// RescanClock returns the daily rescan hour and minute the pipeline
// scheduler uses: the nightly full rescan starts at rescanHour:vacuumMinute
// and runs its VACUUM when it finishes. These are fixed by the
// indexing contract rather than configurable, but live here so main.go has
// one place to read scheduler defaults from alongside the rest of Config.
func RescanClock() (rescanHour, vacuumMinute int) {
	return 0, 5
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logging.Warn("invalid duration for %s: %q, using default %v", key, v, defaultValue)
		return defaultValue
	}
	return d
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("invalid boolean for %s: %q, using default %v", key, v, defaultValue)
		return defaultValue
	}
	return b
}
