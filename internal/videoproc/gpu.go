package videoproc

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"turbopix/internal/logging"
)

// GPUAccel selects which hardware encoder family ffmpeg should prefer.
type GPUAccel string

const (
	GPUAccelNone         GPUAccel = "none"
	GPUAccelAuto         GPUAccel = "auto"
	GPUAccelNVIDIA       GPUAccel = "nvidia"
	GPUAccelVAAPI        GPUAccel = "vaapi"
	GPUAccelVideoToolbox GPUAccel = "videotoolbox"
)

type gpuCandidate struct {
	accel   GPUAccel
	encoder string
	filter  string
}

var gpuCandidatesByMode = map[GPUAccel][]gpuCandidate{
	GPUAccelNVIDIA:       {{GPUAccelNVIDIA, "h264_nvenc", ""}},
	GPUAccelVAAPI:        {{GPUAccelVAAPI, "h264_vaapi", "format=nv12,hwupload"}},
	GPUAccelVideoToolbox: {{GPUAccelVideoToolbox, "h264_videotoolbox", ""}},
	GPUAccelAuto: {
		{GPUAccelNVIDIA, "h264_nvenc", ""},
		{GPUAccelVAAPI, "h264_vaapi", "format=nv12,hwupload"},
		{GPUAccelVideoToolbox, "h264_videotoolbox", ""},
	},
}

// gpuDetector caches the result of probing for hardware encoders, since the
// probe shells out to ffmpeg and only needs to run once per process.
type gpuDetector struct {
	mu        sync.Mutex
	done      bool
	available bool
	accel     GPUAccel
	encoder   string
	filter    string
}

func (g *gpuDetector) detect(requested GPUAccel) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done {
		return
	}
	g.done = true

	if requested == GPUAccelNone {
		logging.Info("videoproc: GPU acceleration disabled")
		return
	}

	candidates, ok := gpuCandidatesByMode[requested]
	if !ok {
		logging.Warn("videoproc: unknown GPU acceleration mode %q, falling back to CPU", requested)
		return
	}

	for _, c := range candidates {
		if !deviceAccessible(c.accel) {
			continue
		}
		if !encoderWorks(c.encoder) {
			logging.Info("videoproc: %s encoder test failed", c.accel)
			continue
		}
		g.available = true
		g.accel = c.accel
		g.encoder = c.encoder
		g.filter = c.filter
		logging.Info("videoproc: GPU acceleration enabled (%s, encoder=%s)", c.accel, c.encoder)
		return
	}

	logging.Warn("videoproc: no GPU encoder available, falling back to CPU")
}

func deviceAccessible(accel GPUAccel) bool {
	switch accel {
	case GPUAccelNVIDIA:
		for _, dev := range []string{"/dev/nvidia0", "/dev/nvidiactl", "/dev/nvidia-uvm"} {
			if _, err := os.Stat(dev); err == nil {
				return true
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		out, err := exec.CommandContext(ctx, "nvidia-smi", "-L").Output()
		return err == nil && len(out) > 0
	case GPUAccelVAAPI:
		for _, dev := range []string{"/dev/dri/renderD128", "/dev/dri/renderD129", "/dev/dri/card0"} {
			if _, err := os.Stat(dev); err == nil {
				return true
			}
		}
		return false
	case GPUAccelVideoToolbox:
		return runtime.GOOS == "darwin"
	default:
		return true
	}
}

// encoderWorks runs a minimal one-frame encode against /dev/null to confirm
// ffmpeg can actually drive the hardware encoder, not just that it is listed.
func encoderWorks(encoder string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	devNull := os.DevNull
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "lavfi", "-i", "color=c=black:s=64x64:d=0.1",
		"-c:v", encoder, "-f", "null", devNull,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	return cmd.Run() == nil
}
