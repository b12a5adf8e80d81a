package mutator

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"turbopix/internal/store"
)

func TestValidateRotatableRejectsVideo(t *testing.T) {
	if err := validateRotatable(store.MediaTypeVideo, ".jpg"); err == nil {
		t.Error("expected an error rotating a video")
	}
}

func TestValidateRotatableRejectsRaw(t *testing.T) {
	if err := validateRotatable(store.MediaTypeRaw, ".cr2"); err == nil {
		t.Error("expected an error rotating a RAW image")
	}
}

func TestValidateRotatableAcceptsJPEGAndPNG(t *testing.T) {
	if err := validateRotatable(store.MediaTypeImage, ".jpg"); err != nil {
		t.Errorf("unexpected error for .jpg: %v", err)
	}
	if err := validateRotatable(store.MediaTypeImage, ".png"); err != nil {
		t.Errorf("unexpected error for .png: %v", err)
	}
	if err := validateRotatable(store.MediaTypeImage, ".webp"); err == nil {
		t.Error("expected an error for .webp")
	}
}

func rectImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	return img
}

func TestRotateSwapsDimensionsAt90And270(t *testing.T) {
	src := rectImage(300, 200)

	r90 := rotate(src, 90)
	if b := r90.Bounds(); b.Dx() != 200 || b.Dy() != 300 {
		t.Errorf("rotate 90: got %dx%d, want 200x300", b.Dx(), b.Dy())
	}

	r270 := rotate(src, 270)
	if b := r270.Bounds(); b.Dx() != 200 || b.Dy() != 300 {
		t.Errorf("rotate 270: got %dx%d, want 200x300", b.Dx(), b.Dy())
	}
}

func TestRotatePreservesDimensionsAt180(t *testing.T) {
	src := rectImage(300, 200)
	r180 := rotate(src, 180)
	if b := r180.Bounds(); b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("rotate 180: got %dx%d, want 300x200", b.Dx(), b.Dy())
	}
}

func TestEncodeToAndHashFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jpg")
	img := rectImage(16, 16)

	if err := encodeTo(path, ".jpg", img); err != nil {
		t.Fatalf("encodeTo returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}

	h1, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile returned error: %v", err)
	}
	h2, err := hashFile(path)
	if err != nil {
		t.Fatalf("hashFile returned error: %v", err)
	}
	if h1 != h2 {
		t.Error("hashing the same file twice gave different results")
	}
	if len(h1) != 64 {
		t.Errorf("expected a 64-char hex sha256, got %d chars", len(h1))
	}
}
