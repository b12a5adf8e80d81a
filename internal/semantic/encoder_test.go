package semantic

import (
	"image"
	"math"
	"testing"
)

func TestNormalizeUnitLength(t *testing.T) {
	vec := []float32{3, 4}
	got := normalize(vec)

	var sumSquares float64
	for _, v := range got {
		sumSquares += float64(v) * float64(v)
	}
	length := math.Sqrt(sumSquares)
	if math.Abs(length-1.0) > 1e-6 {
		t.Errorf("normalized length = %v, want 1.0", length)
	}
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("normalize([3,4]) = %v, want [0.6, 0.8]", got)
	}
}

func TestNormalizeZeroVector(t *testing.T) {
	vec := []float32{0, 0, 0}
	got := normalize(vec)
	for i, v := range got {
		if v != vec[i] {
			t.Errorf("normalize(zero vector) should return the input unchanged, got %v", got)
		}
	}
}

func TestPreprocessImageFillsAllPlanes(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	dst := make([]float32, 3*InputSize*InputSize)
	preprocessImage(img, dst)

	planeSize := InputSize * InputSize
	// A fully black source image normalizes to -mean/std in every channel.
	wantR := -imagenetMean[0] / imagenetStd[0]
	if math.Abs(float64(dst[0]-wantR)) > 1e-4 {
		t.Errorf("red plane[0] = %v, want %v", dst[0], wantR)
	}
	wantG := -imagenetMean[1] / imagenetStd[1]
	if math.Abs(float64(dst[planeSize]-wantG)) > 1e-4 {
		t.Errorf("green plane[0] = %v, want %v", dst[planeSize], wantG)
	}
	wantB := -imagenetMean[2] / imagenetStd[2]
	if math.Abs(float64(dst[2*planeSize]-wantB)) > 1e-4 {
		t.Errorf("blue plane[0] = %v, want %v", dst[2*planeSize], wantB)
	}
	if len(dst) != 3*planeSize {
		t.Fatalf("dst length = %d, want %d", len(dst), 3*planeSize)
	}
}
