// Package videoproc wraps ffprobe/ffmpeg for the three things the pipeline
// needs from a video file: dimension/codec probing, sampled-frame
// extraction for semantic encoding, and cache-addressed transcoding for
// playback of containers browsers can't play natively.
package videoproc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// compatibleCodecs/Containers gate whether a video can be streamed as-is or
// needs a transcode pass before a browser can play it.
var compatibleCodecs = map[string]bool{"h264": true, "vp8": true, "vp9": true, "av1": true}
var compatibleContainers = map[string]bool{"mp4": true, "webm": true, "ogg": true}

// Info describes a video's playback-relevant properties.
type Info struct {
	Duration       float64
	Width          int
	Height         int
	Codec          string
	BitRate        int64
	FrameRate      float64
	NeedsTranscode bool
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
	} `json:"streams"`
}

// Probe runs ffprobe against filePath and returns its dimensions, codec,
// and whether it needs transcoding before it can be streamed directly.
func Probe(ctx context.Context, ffprobePath, filePath string) (*Info, error) {
	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed for %s: %w (%s)", filePath, err, stderr.String())
	}

	var raw ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output for %s: %w", filePath, err)
	}

	info := &Info{}
	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.ParseInt(raw.Format.BitRate, 10, 64); err == nil {
		info.BitRate = b
	}

	for _, s := range raw.Streams {
		if s.CodecType != "video" {
			continue
		}
		info.Width = s.Width
		info.Height = s.Height
		info.Codec = s.CodecName
		info.FrameRate = parseFrameRateFraction(s.RFrameRate)
		break
	}

	// H.264 requires even dimensions; odd source dimensions are bumped up
	// by one pixel rather than rejected.
	if info.Width%2 != 0 {
		info.Width++
	}
	if info.Height%2 != 0 {
		info.Height++
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	info.NeedsTranscode = !compatibleCodecs[info.Codec] || !compatibleContainers[ext]

	return info, nil
}

func parseFrameRateFraction(fraction string) float64 {
	parts := strings.SplitN(fraction, "/", 2)
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
