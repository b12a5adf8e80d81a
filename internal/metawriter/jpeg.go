package metawriter

import (
	"fmt"
	"os"
)

// writeJPEG replaces path's APP1 EXIF segment (if any) with one built from
// ifd0/gps, leaving every other marker segment and all scan data
// byte-for-byte identical.
func writeJPEG(path string, ifd0, gps []tagValue) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("metawriter: reading %s: %w", path, err)
	}
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return fmt.Errorf("metawriter: %s is not a valid JPEG (missing SOI marker)", path)
	}

	app1 := buildAPP1(buildExifTIFF(ifd0, gps))

	out := make([]byte, 0, len(data)+len(app1))
	out = append(out, data[0], data[1]) // SOI
	out = append(out, app1...)

	pos := 2
	for pos+2 <= len(data) {
		if data[pos] != 0xFF {
			return fmt.Errorf("metawriter: malformed JPEG marker at offset %d", pos)
		}
		marker := data[pos+1]

		if marker == 0xD9 { // EOI
			out = append(out, data[pos:]...)
			pos = len(data)
			break
		}
		if marker == 0xDA { // start of scan: everything after this is entropy-coded data plus EOI
			out = append(out, data[pos:]...)
			pos = len(data)
			break
		}
		if marker == 0x01 || (marker >= 0xD0 && marker <= 0xD7) {
			out = append(out, data[pos], data[pos+1])
			pos += 2
			continue
		}

		if pos+4 > len(data) {
			return fmt.Errorf("metawriter: truncated JPEG segment at offset %d", pos)
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		segEnd := pos + 2 + length
		if length < 2 || segEnd > len(data) {
			return fmt.Errorf("metawriter: invalid segment length at offset %d", pos)
		}

		isExifAPP1 := marker == 0xE1 && length >= 8 && string(data[pos+4:pos+10]) == "Exif\x00\x00"
		if !isExifAPP1 {
			out = append(out, data[pos:segEnd]...)
		}
		pos = segEnd
	}

	if pos < len(data) {
		out = append(out, data[pos:]...)
	}

	return atomicWrite(path, out)
}

// buildAPP1 wraps an EXIF/TIFF blob in a JPEG APP1 marker segment.
func buildAPP1(tiffBlob []byte) []byte {
	const exifHeader = "Exif\x00\x00"
	length := 2 + len(exifHeader) + len(tiffBlob)
	out := make([]byte, 0, 2+length)
	out = append(out, 0xFF, 0xE1)
	out = append(out, byte(length>>8), byte(length))
	out = append(out, exifHeader...)
	out = append(out, tiffBlob...)
	return out
}
