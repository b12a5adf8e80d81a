package videoproc

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// SampleFrames extracts count frames evenly spaced across the video's
// duration in a single ffmpeg invocation (via the select filter), rather
// than one process per frame, so semantic video encoding can batch the
// decode cost.
func (p *Processor) SampleFrames(ctx context.Context, filePath string, info *Info, count int) ([]image.Image, []float64, error) {
	if count <= 0 {
		return nil, nil, fmt.Errorf("videoproc: frame count must be positive")
	}
	if info.Duration <= 0 {
		return nil, nil, fmt.Errorf("videoproc: cannot sample frames, unknown duration")
	}

	frameTimes := make([]float64, count)
	step := info.Duration / float64(count+1)
	for i := range frameTimes {
		frameTimes[i] = step * float64(i+1)
	}

	tempDir, err := os.MkdirTemp("", "videoproc-frames-*")
	if err != nil {
		return nil, nil, fmt.Errorf("creating frame extraction tempdir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	selectExpr := buildSelectExpr(frameTimes)
	outputPattern := filepath.Join(tempDir, "frame_%03d.jpg")

	args := []string{
		"-i", filePath,
		"-vf", fmt.Sprintf("select='%s'", selectExpr),
		"-vsync", "0",
		"-q:v", "2",
		outputPattern,
	}

	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, nil, fmt.Errorf("extracting frames from %s: %w (%s)", filePath, err, string(out))
	}

	var frames []image.Image
	for i := range frameTimes {
		path := filepath.Join(tempDir, fmt.Sprintf("frame_%03d.jpg", i+1))
		f, err := os.Open(path)
		if err != nil {
			continue // ffmpeg's select can under/overshoot near the tail; skip missing frames
		}
		img, err := jpeg.Decode(f)
		f.Close()
		if err != nil {
			continue
		}
		frames = append(frames, img)
	}

	if len(frames) == 0 {
		return nil, nil, fmt.Errorf("videoproc: no frames extracted from %s", filePath)
	}

	return frames, frameTimes[:len(frames)], nil
}

// buildSelectExpr builds an ffmpeg select filter expression matching the
// first frame at or after each target timestamp (the window between the
// previous input frame and the current one holds the target), joined by
// '+' for a logical OR across all the windows.
func buildSelectExpr(times []float64) string {
	parts := make([]string, len(times))
	for i, t := range times {
		parts[i] = fmt.Sprintf("gte(t,%.3f)*lt(prev_t,%.3f)", t, t)
	}
	return strings.Join(parts, "+")
}
