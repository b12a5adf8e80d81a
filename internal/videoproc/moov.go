package videoproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// NeedsMoovFix reports whether an MP4's moov atom sits after its mdat atom,
// which forces browsers to buffer the entire file before playback can
// start. It reads up to eight leading top-level box headers directly rather
// than shelling out, and reports false if neither box appears among them.
func NeedsMoovFix(filePath string) (bool, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", filePath, err)
	}
	defer f.Close()

	var offset int64
	for i := 0; i < 8; i++ { // a handful of top-level boxes is enough to decide
		header := make([]byte, 8)
		if _, err := f.ReadAt(header, offset); err != nil {
			return false, nil // ran out of boxes to inspect; assume it's fine
		}

		size := int64(uint32(header[0])<<24 | uint32(header[1])<<16 | uint32(header[2])<<8 | uint32(header[3]))
		boxType := string(header[4:8])

		switch boxType {
		case "moov":
			return false, nil // moov found before any mdat: already fast-start
		case "mdat":
			return true, nil // mdat found first: moov must be later, needs remux
		}

		if size < 8 {
			return false, nil
		}
		offset += size
	}

	return false, nil
}

// FixMoovAtom remuxes filePath in place so the moov atom is relocated to
// the front, preserving the original modification time.
func FixMoovAtom(ctx context.Context, ffmpegPath, filePath string) error {
	info, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filePath, err)
	}

	tempPath := filePath + ".faststart.tmp"
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-i", filePath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-f", "mp4",
		tempPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("remuxing %s for faststart: %w (%s)", filePath, err, string(out))
	}

	if err := os.Rename(tempPath, filePath); err != nil {
		return fmt.Errorf("replacing %s with faststart remux: %w", filePath, err)
	}

	return os.Chtimes(filePath, info.ModTime(), info.ModTime())
}
