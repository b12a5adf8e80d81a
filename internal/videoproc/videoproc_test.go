package videoproc

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

func TestBuildFFmpegArgsStreamCopyWhenCompatible(t *testing.T) {
	p := &Processor{}
	info := &Info{Width: 1920, Height: 1080, Codec: "h264"}
	args := p.buildFFmpegArgs("in.mp4", "out.mp4", 0, info, false, false)

	found := false
	for i, a := range args {
		if a == "-c:v" && i+1 < len(args) && args[i+1] == "copy" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected stream copy args, got %v", args)
	}
}

func TestBuildFFmpegArgsScalesWhenNarrower(t *testing.T) {
	p := &Processor{}
	info := &Info{Width: 1920, Height: 1080, Codec: "hevc"}
	args := p.buildFFmpegArgs("in.mp4", "out.mp4", 640, info, true, false)

	found := false
	for i, a := range args {
		if a == "-vf" && i+1 < len(args) && args[i+1] == "scale=640:-2" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a scale filter for narrower target width, got %v", args)
	}
}

func TestBuildSelectExprJoinsWindows(t *testing.T) {
	expr := buildSelectExpr([]float64{1.0, 2.0})
	want := "gte(t,1.000)*lt(prev_t,1.000)+gte(t,2.000)*lt(prev_t,2.000)"
	if expr != want {
		t.Errorf("buildSelectExpr = %q, want %q", expr, want)
	}
}
