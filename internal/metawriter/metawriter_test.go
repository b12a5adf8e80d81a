package metawriter

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

func f64(v float64) *float64 { return &v }

func TestValidateLatitudeOutOfRange(t *testing.T) {
	if err := validate(Update{Latitude: f64(91), Longitude: f64(0)}); err == nil {
		t.Error("expected error for latitude out of range")
	}
}

func TestValidateLongitudeOutOfRange(t *testing.T) {
	if err := validate(Update{Latitude: f64(0), Longitude: f64(181)}); err == nil {
		t.Error("expected error for longitude out of range")
	}
}

func TestValidateGPSMustBePaired(t *testing.T) {
	if err := validate(Update{Latitude: f64(10)}); err == nil {
		t.Error("expected error for latitude without longitude")
	}
	if err := validate(Update{Longitude: f64(10)}); err == nil {
		t.Error("expected error for longitude without latitude")
	}
}

func TestWriteRejectsRawFormats(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.cr2")
	os.WriteFile(path, []byte("not a real raw file"), 0o644)

	err := Write(path, Update{TakenAt: timePtr()})
	if err == nil {
		t.Fatal("expected error writing metadata to a RAW file")
	}
}

func TestWriteRejectsWebP(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.webp")
	os.WriteFile(path, []byte("RIFF...WEBP"), 0o644)

	err := Write(path, Update{TakenAt: timePtr()})
	if err == nil {
		t.Fatal("expected error writing metadata to a WebP file")
	}
}

func timePtr() *time.Time {
	tm := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	return &tm
}

// minimalJPEG builds a syntactically valid marker stream: SOI, an APP0
// segment, a start-of-scan header, a few bytes of "entropy data", and EOI.
// It does not decode as a real photograph, only as a well-formed segment
// sequence, which is all writeJPEG's marker walker needs.
func minimalJPEG() []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8}) // SOI

	app0 := []byte{0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0, 1, 1, 0, 0, 1, 0, 1, 0, 0}
	buf.Write(app0)

	sos := []byte{0xFF, 0xDA, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x00, 0x3F, 0x00}
	buf.Write(sos)
	buf.Write([]byte{0x12, 0x34, 0x56, 0x78, 0x9A}) // fake entropy-coded data
	buf.Write([]byte{0xFF, 0xD9})                   // EOI
	return buf.Bytes()
}

func TestWriteJPEGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	if err := os.WriteFile(path, minimalJPEG(), 0o644); err != nil {
		t.Fatal(err)
	}

	taken := time.Date(2023, 3, 14, 9, 26, 53, 0, time.UTC)
	lat, lon := f64(37.7749), f64(-122.4194)

	if err := Write(path, Update{TakenAt: &taken, Latitude: lat, Longitude: lon}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		t.Fatalf("re-decoding EXIF after write: %v", err)
	}

	tag, err := x.Get(exif.DateTimeOriginal)
	if err != nil {
		t.Fatalf("DateTimeOriginal missing after write: %v", err)
	}
	got, _ := tag.StringVal()
	if want := taken.Format("2006:01:02 15:04:05"); got != want {
		t.Errorf("DateTimeOriginal = %q, want %q", got, want)
	}

	latTag, err := x.Get(exif.GPSLatitude)
	if err != nil {
		t.Fatalf("GPSLatitude missing after write: %v", err)
	}
	num, den, _ := latTag.Rat2(0)
	if den == 0 || float64(num)/float64(den) != 37 {
		t.Errorf("GPSLatitude degrees = %d/%d, want 37", num, den)
	}

	refTag, _ := x.Get(exif.GPSLatitudeRef)
	if s, _ := refTag.StringVal(); s != "N" {
		t.Errorf("GPSLatitudeRef = %q, want N", s)
	}
}

func TestWriteJPEGPreservesBytesAfterStartOfScan(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.jpg")
	original := minimalJPEG()
	os.WriteFile(path, original, 0o644)

	sosIdx := bytes.Index(original, []byte{0xFF, 0xDA})
	tail := append([]byte{}, original[sosIdx:]...)

	taken := time.Now()
	if err := Write(path, Update{TakenAt: &taken}); err != nil {
		t.Fatal(err)
	}

	rewritten, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(rewritten, tail) {
		t.Error("bytes from start-of-scan onward were not preserved verbatim")
	}
}

func minimalPNG() []byte {
	var buf bytes.Buffer
	buf.WriteString(pngSignature)

	ihdrData := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdrData[0:4], 4)
	binary.BigEndian.PutUint32(ihdrData[4:8], 4)
	ihdrData[8] = 8 // bit depth
	ihdrData[9] = 2 // color type: truecolor
	buf.Write(buildPNGChunk("IHDR", ihdrData))
	buf.Write(buildPNGChunk("IDAT", []byte{0x78, 0x9C, 0x03, 0x00, 0x00, 0x00, 0x00, 0x01}))
	buf.Write(buildPNGChunk("IEND", nil))
	return buf.Bytes()
}

func TestWritePNGRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "photo.png")
	if err := os.WriteFile(path, minimalPNG(), 0o644); err != nil {
		t.Fatal(err)
	}

	taken := time.Date(2022, 11, 1, 8, 0, 0, 0, time.UTC)
	if err := Write(path, Update{TakenAt: &taken}); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(data, []byte("eXIf")) {
		t.Error("expected an eXIf chunk after write")
	}
	if !bytes.HasPrefix(data, []byte(pngSignature)) {
		t.Error("PNG signature was not preserved")
	}
}

func TestWritePNGRejectsMissingIHDR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.png")
	var buf bytes.Buffer
	buf.WriteString(pngSignature)
	buf.Write(buildPNGChunk("IEND", nil))
	os.WriteFile(path, buf.Bytes(), 0o644)

	taken := time.Now()
	if err := Write(path, Update{TakenAt: &taken}); err == nil {
		t.Error("expected error for PNG with no IHDR chunk")
	}
}
