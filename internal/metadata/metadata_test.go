package metadata

import "testing"

func TestParseFrameRateFraction(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"30000/1001", 29.97002997002997},
		{"25/1", 25},
		{"0/0", 0},
		{"bogus", 0},
	}

	for _, c := range cases {
		got := parseFrameRateFraction(c.in)
		if diff := got - c.want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("parseFrameRateFraction(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestExtractImageMissingFile(t *testing.T) {
	e := New("ffprobe")
	if _, err := e.ExtractImage("/nonexistent/path.jpg"); err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}

func TestColorSpaceName(t *testing.T) {
	if got := colorSpaceName(1); got != "sRGB" {
		t.Errorf("colorSpaceName(1) = %q, want sRGB", got)
	}
	if got := colorSpaceName(65535); got != "Uncalibrated" {
		t.Errorf("colorSpaceName(65535) = %q, want Uncalibrated", got)
	}
	if got := colorSpaceName(7); got != "7" {
		t.Errorf("colorSpaceName(7) = %q, want the raw value as a fallback", got)
	}
}

func TestMeteringModeName(t *testing.T) {
	cases := map[int]string{0: "Unknown", 3: "Spot", 255: "Other"}
	for v, want := range cases {
		if got := meteringModeName(v); got != want {
			t.Errorf("meteringModeName(%d) = %q, want %q", v, got, want)
		}
	}
}
