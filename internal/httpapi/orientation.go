package httpapi

import (
	"image"

	"github.com/disintegration/imaging"
)

// applyOrientation bakes a standard EXIF orientation value into img's
// pixels. RAW containers carry their own orientation tag but aren't a
// format imaging's AutoOrientation can read, so the Metadata Extractor's
// already-parsed value is applied here instead, the same correction
// imaging.Open(AutoOrientation(true)) performs for JPEG/PNG sources.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
