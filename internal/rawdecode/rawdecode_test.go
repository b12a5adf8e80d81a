package rawdecode

import "testing"

func TestIsRawFile(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"photo.cr2", true},
		{"photo.CR2", true},
		{"photo.cr3", true},
		{"photo.nef", true},
		{"photo.NEF", true},
		{"photo.nrw", true},
		{"photo.arw", true},
		{"photo.srf", true},
		{"photo.sr2", true},
		{"photo.raf", true},
		{"photo.orf", true},
		{"photo.rw2", true},
		{"photo.dng", true},
		{"photo.pef", true},
		{"photo.jpg", false},
		{"photo.png", false},
		{"photo.webp", false},
		{"video.mp4", false},
		{"noextension", false},
	}

	for _, c := range cases {
		if got := IsRawFile(c.path); got != c.want {
			t.Errorf("IsRawFile(%q) = %v, want %v", c.path, got, c.want)
		}
	}
}

func TestParseCFAPattern(t *testing.T) {
	cases := []struct {
		tag  string
		want CFAPattern
	}{
		{"RGGB", CFARGGB},
		{"BGGR", CFABGGR},
		{"GRBG", CFAGRBG},
		{"GBRG", CFAGBRG},
		{"bggr", CFABGGR},
		{"", CFARGGB},
		{"unknown", CFARGGB},
	}

	for _, c := range cases {
		if got := ParseCFAPattern(c.tag); got != c.want {
			t.Errorf("ParseCFAPattern(%q) = %v, want %v", c.tag, got, c.want)
		}
	}
}

func TestCFAColorAtRGGBTiling(t *testing.T) {
	// RGGB: (0,0)=R (1,0)=G (0,1)=G (1,1)=B
	if c := cfaColorAt(CFARGGB, 0, 0); c != channelRed {
		t.Errorf("RGGB(0,0) = %d, want red", c)
	}
	if c := cfaColorAt(CFARGGB, 1, 0); c != channelGreen {
		t.Errorf("RGGB(1,0) = %d, want green", c)
	}
	if c := cfaColorAt(CFARGGB, 0, 1); c != channelGreen {
		t.Errorf("RGGB(0,1) = %d, want green", c)
	}
	if c := cfaColorAt(CFARGGB, 1, 1); c != channelBlue {
		t.Errorf("RGGB(1,1) = %d, want blue", c)
	}
}

func TestDemosaicLinearFlatField(t *testing.T) {
	// A uniformly lit 4x4 sensor plane should demosaic to a uniform image:
	// every channel constant across the frame regardless of CFA tiling.
	const w, h = 4, 4
	data := make([]uint16, w*h)
	for i := range data {
		data[i] = 0x4000
	}
	plane := &BayerPlane{Width: w, Height: h, CFA: CFARGGB, Data: data}

	rgb := DemosaicLinear(plane)
	for i := 0; i < w*h; i++ {
		r, g, b := rgb[i*3], rgb[i*3+1], rgb[i*3+2]
		if r != 0x4000 || g != 0x4000 || b != 0x4000 {
			t.Fatalf("pixel %d: got (%x,%x,%x), want uniform 0x4000", i, r, g, b)
		}
	}
}

func TestTo8BitHighByteConversion(t *testing.T) {
	img := To8Bit(1, 1, []uint16{0x1234, 0xabcd, 0x00ff})
	rgba := img.RGBAAt(0, 0)
	if rgba.R != 0x12 {
		t.Errorf("R = %#x, want 0x12", rgba.R)
	}
	if rgba.G != 0xab {
		t.Errorf("G = %#x, want 0xab", rgba.G)
	}
	if rgba.B != 0x00 {
		t.Errorf("B = %#x, want 0x00", rgba.B)
	}
}
