package pipeline

import (
	"encoding/json"
	"image"

	"github.com/disintegration/imaging"
)

// openOriented opens a non-RAW still image with its stored EXIF
// orientation baked into the pixels, the same semantics the mutator and
// derivative cache rely on for "what a viewer actually sees."
func openOriented(path string) (image.Image, error) {
	return imaging.Open(path, imaging.AutoOrientation(true))
}

func marshalFloats(values []float64) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
