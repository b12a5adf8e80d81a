package fsscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWalkFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	mustWrite := func(name string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("writing fixture %s: %v", name, err)
		}
	}
	mustWrite("a.jpg")
	mustWrite("b.txt")
	mustWrite("c.JPG")

	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatalf("creating subdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "sub", "d.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("writing nested fixture: %v", err)
	}

	var found []string
	err := Walk(context.Background(), dir, map[string]bool{".jpg": true}, func(e Entry) error {
		found = append(found, filepath.Base(e.Path))
		return nil
	})
	if err != nil {
		t.Fatalf("Walk returned error: %v", err)
	}

	if len(found) != 3 {
		t.Fatalf("expected 3 matches (a.jpg, c.JPG, d.jpg), got %d: %v", len(found), found)
	}
}

func TestVolumeResolverLongestPrefix(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":      "/data/media",
		"media-raw":  "/data/media/raw",
	})

	if got := vr.Resolve("/data/media/raw/IMG_0001.CR2"); got != "media-raw" {
		t.Errorf("expected longest-prefix match media-raw, got %q", got)
	}
	if got := vr.Resolve("/data/media/IMG_0002.jpg"); got != "media" {
		t.Errorf("expected media, got %q", got)
	}
	if got := vr.Resolve("/other/path"); got != "unknown" {
		t.Errorf("expected unknown for unmatched path, got %q", got)
	}
}
