// Package metadata extracts the structured envelope (camera, exposure
// settings, GPS location, video container info) from a source file, either
// by reading its EXIF tags or by shelling out to ffprobe for video.
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"turbopix/internal/logging"
	"turbopix/internal/store"
)

// Extractor pulls metadata envelopes out of source media files.
type Extractor struct {
	ffprobePath string
}

// New creates an Extractor. ffprobePath is the path to the ffprobe binary,
// typically resolved once at startup from FFPROBE_PATH.
func New(ffprobePath string) *Extractor {
	return &Extractor{ffprobePath: ffprobePath}
}

// ExtractImage reads EXIF tags out of a JPEG/TIFF/PNG-with-EXIF file and
// returns the populated envelope fields. A file with no EXIF segment is not
// an error — it simply yields an envelope with nil Camera/Settings/Location.
func (e *Extractor) ExtractImage(path string) (store.Envelope, error) {
	var env store.Envelope

	env.Image = &store.ImageInfo{Orientation: 1}
	if cfgFile, err := os.Open(path); err == nil {
		if cfg, _, err := image.DecodeConfig(cfgFile); err == nil {
			env.Image.Width = cfg.Width
			env.Image.Height = cfg.Height
		}
		cfgFile.Close()
	}

	f, err := os.Open(path)
	if err != nil {
		return env, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		logging.Debug("metadata: no EXIF data in %s: %v", path, err)
		return env, nil
	}

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			env.Image.Orientation = v
		}
	}
	if tag, err := x.Get(exif.PixelXDimension); err == nil {
		if v, err := tag.Int(0); err == nil && v > 0 {
			env.Image.Width = v
		}
	}
	if tag, err := x.Get(exif.PixelYDimension); err == nil {
		if v, err := tag.Int(0); err == nil && v > 0 {
			env.Image.Height = v
		}
	}

	camera := &store.CameraInfo{}
	if tag, err := x.Get(exif.Make); err == nil {
		camera.Make = cleanTagString(tag)
	}
	if tag, err := x.Get(exif.Model); err == nil {
		camera.Model = cleanTagString(tag)
	}
	if tag, err := x.Get(exif.LensModel); err == nil {
		camera.Lens = cleanTagString(tag)
	}
	if tag, err := x.Get(exif.LensMake); err == nil {
		camera.LensMake = cleanTagString(tag)
	}
	if camera.Make != "" || camera.Model != "" || camera.Lens != "" || camera.LensMake != "" {
		env.Camera = camera
	}

	settings := &store.SettingsInfo{}
	hasSettings := false
	if tag, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := tag.Int(0); err == nil {
			settings.ISO = v
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.FNumber); err == nil {
		if v, err := rationalFloat(tag); err == nil {
			settings.Aperture = v
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.ExposureTime); err == nil {
		settings.ShutterSpeed = cleanTagString(tag)
		hasSettings = true
	}
	if tag, err := x.Get(exif.FocalLength); err == nil {
		if v, err := rationalFloat(tag); err == nil {
			settings.FocalLength = v
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.ColorSpace); err == nil {
		if v, err := tag.Int(0); err == nil {
			settings.ColorSpace = colorSpaceName(v)
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.WhiteBalance); err == nil {
		if v, err := tag.Int(0); err == nil {
			settings.WhiteBalance = whiteBalanceName(v)
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.ExposureMode); err == nil {
		if v, err := tag.Int(0); err == nil {
			settings.ExposureMode = exposureModeName(v)
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.MeteringMode); err == nil {
		if v, err := tag.Int(0); err == nil {
			settings.MeteringMode = meteringModeName(v)
			hasSettings = true
		}
	}
	if tag, err := x.Get(exif.Flash); err == nil {
		if v, err := tag.Int(0); err == nil {
			// Bit 0 of the Flash tag is the fired/did-not-fire predicate; the
			// remaining bits encode return-light detection and flash mode,
			// which this envelope does not track.
			settings.FlashUsed = v&0x1 != 0
			hasSettings = true
		}
	}
	if hasSettings {
		env.Settings = settings
	}

	if lat, lon, ok := gpsDecimalDegrees(x); ok {
		env.Location = &store.LocationInfo{Latitude: lat, Longitude: lon}
		if alt, err := x.Get(exif.GPSAltitude); err == nil {
			if v, err := rationalFloat(alt); err == nil {
				env.Location.Altitude = v
			}
		}
	}

	return env, nil
}

// TakenAt returns the EXIF DateTimeOriginal, falling back to DateTime, or
// nil if neither is present or parseable. goexif's own DateTime() only
// accepts the EXIF-standard colon-delimited layout; some cameras and most
// metadata-editing tools write the dash-delimited ISO-ish variant instead,
// so that is tried as a fallback before giving up.
func (e *Extractor) TakenAt(path string) *time.Time {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}

	if t, err := x.DateTime(); err == nil {
		return &t
	}

	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.Parse("2006-01-02 15:04:05", strings.TrimRight(s, "\x00")); err == nil {
			return &t
		}
	}
	return nil
}

func colorSpaceName(v int) string {
	switch v {
	case 1:
		return "sRGB"
	case 65535:
		return "Uncalibrated"
	default:
		return strconv.Itoa(v)
	}
}

func whiteBalanceName(v int) string {
	switch v {
	case 0:
		return "Auto"
	case 1:
		return "Manual"
	default:
		return strconv.Itoa(v)
	}
}

func exposureModeName(v int) string {
	switch v {
	case 0:
		return "Auto"
	case 1:
		return "Manual"
	case 2:
		return "Auto bracket"
	default:
		return strconv.Itoa(v)
	}
}

func meteringModeName(v int) string {
	switch v {
	case 0:
		return "Unknown"
	case 1:
		return "Average"
	case 2:
		return "CenterWeightedAverage"
	case 3:
		return "Spot"
	case 4:
		return "MultiSpot"
	case 5:
		return "Pattern"
	case 6:
		return "Partial"
	case 255:
		return "Other"
	default:
		return strconv.Itoa(v)
	}
}

func cleanTagString(tag *tiff.Tag) string {
	s, err := tag.StringVal()
	if err != nil {
		return strings.Trim(tag.String(), `"`)
	}
	return strings.TrimRight(strings.TrimSpace(s), "\x00")
}

func rationalFloat(tag *tiff.Tag) (float64, error) {
	num, den, err := tag.Rat2(0)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("zero denominator")
	}
	return float64(num) / float64(den), nil
}

func gpsDecimalDegrees(x *exif.Exif) (lat, lon float64, ok bool) {
	latVal, err := x.Get(exif.GPSLatitude)
	if err != nil {
		return 0, 0, false
	}
	lonVal, err := x.Get(exif.GPSLongitude)
	if err != nil {
		return 0, 0, false
	}

	latDeg, ok1 := dmsToDecimal(latVal)
	lonDeg, ok2 := dmsToDecimal(lonVal)
	if !ok1 || !ok2 {
		return 0, 0, false
	}

	if ref, err := x.Get(exif.GPSLatitudeRef); err == nil {
		if s, _ := ref.StringVal(); s == "S" {
			latDeg = -latDeg
		}
	}
	if ref, err := x.Get(exif.GPSLongitudeRef); err == nil {
		if s, _ := ref.StringVal(); s == "W" {
			lonDeg = -lonDeg
		}
	}

	return latDeg, lonDeg, true
}

func dmsToDecimal(tag *tiff.Tag) (float64, bool) {
	if tag.Count != 3 {
		return 0, false
	}
	var parts [3]float64
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return 0, false
		}
		parts[i] = float64(num) / float64(den)
	}
	return parts[0] + parts[1]/60.0 + parts[2]/3600.0, true
}

// ffprobeOutput mirrors the subset of `ffprobe -print_format json` output
// this extractor consumes.
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

// ExtractVideo shells out to ffprobe and returns the envelope's Video field.
func (e *Extractor) ExtractVideo(ctx context.Context, path string) (store.Envelope, error) {
	var env store.Envelope

	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return env, fmt.Errorf("ffprobe failed for %s: %w (%s)", path, err, stderr.String())
	}

	var out ffprobeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return env, fmt.Errorf("parsing ffprobe output for %s: %w", path, err)
	}

	video := &store.VideoInfo{}
	if d, err := strconv.ParseFloat(out.Format.Duration, 64); err == nil {
		video.DurationSeconds = d
	}
	if b, err := strconv.ParseInt(out.Format.BitRate, 10, 64); err == nil {
		video.BitRate = b
	}

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			video.Width = s.Width
			video.Height = s.Height
			video.Codec = s.CodecName
			video.FrameRate = parseFrameRateFraction(s.RFrameRate)
		case "audio":
			if video.AudioCodec == "" {
				video.AudioCodec = s.CodecName
			}
		}
	}

	env.Video = video
	return env, nil
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
