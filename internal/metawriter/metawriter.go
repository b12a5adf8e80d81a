// Package metawriter splices updated EXIF fields (capture time, GPS
// location) into a JPEG or PNG file in place, leaving every other byte —
// especially all pixel data — untouched. Only the APP1 (JPEG) or eXIf
// (PNG) metadata segment is replaced; the rest of the file is copied
// through verbatim.
package metawriter

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"turbopix/internal/rawdecode"
)

// Update is the set of EXIF fields a caller wants rewritten. A nil field is
// left untouched; Latitude and Longitude must be supplied together.
type Update struct {
	TakenAt     *time.Time
	Latitude    *float64
	Longitude   *float64
	Orientation *int
}

var unsupportedExts = map[string]bool{
	".webp": true, ".heic": true, ".heif": true, ".avif": true,
}

// Write rewrites path's EXIF metadata according to u. path must be a JPEG
// or PNG file; RAW and WebP/HEIC/HEIF/AVIF files are rejected outright
// since none of them carry an EXIF segment this writer knows how to splice.
func Write(path string, u Update) error {
	return WriteFrom(path, path, u)
}

// WriteFrom is Write's general form: it reads the existing EXIF tags to
// preserve from sourcePath, and splices the updated segment into
// targetPath. The mutator uses this after re-encoding a rotated image,
// whose fresh JPEG/PNG bytes carry no EXIF of their own — the tags worth
// keeping (camera make/model, capture time) still live on the original file.
func WriteFrom(sourcePath, targetPath string, u Update) error {
	if err := validate(u); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(targetPath))
	if rawdecode.IsRawFile(targetPath) {
		return fmt.Errorf("metawriter: RAW format %s does not support metadata writes; only JPEG and PNG do", ext)
	}
	if unsupportedExts[ext] {
		return fmt.Errorf("metawriter: format %s does not support metadata writes; only JPEG and PNG do", ext)
	}

	ifd0, gps := buildTags(readExif(sourcePath), u)

	switch ext {
	case ".jpg", ".jpeg":
		return writeJPEG(targetPath, ifd0, gps)
	case ".png":
		return writePNG(targetPath, ifd0, gps)
	default:
		return fmt.Errorf("metawriter: format %s does not support metadata writes; only JPEG and PNG do", ext)
	}
}

func validate(u Update) error {
	if u.Latitude != nil && u.Longitude == nil || u.Latitude == nil && u.Longitude != nil {
		return fmt.Errorf("metawriter: latitude and longitude must be provided together")
	}
	if u.Latitude != nil && (*u.Latitude < -90 || *u.Latitude > 90) {
		return fmt.Errorf("metawriter: latitude %f out of range [-90, 90]", *u.Latitude)
	}
	if u.Longitude != nil && (*u.Longitude < -180 || *u.Longitude > 180) {
		return fmt.Errorf("metawriter: longitude %f out of range [-180, 180]", *u.Longitude)
	}
	return nil
}

// preservedIFD0Fields is the small, well-known set of tags carried over
// unchanged from the source file's existing EXIF segment (if any): the
// Make, Model, Software, DateTime and DateTimeOriginal strings and the
// Orientation short, all written back into IFD0. Other Exif sub-IFD fields
// (ISO, exposure, lens) and any thumbnail IFD are dropped on rewrite — there is no safe way to re-point their
// offsets without walking the full original tag set, which this writer does
// not attempt.
func preservedIFD0Fields(x *exif.Exif) []tagValue {
	if x == nil {
		return nil
	}
	var tags []tagValue
	add := func(id uint16, field exif.FieldName) {
		tag, err := x.Get(field)
		if err != nil {
			return
		}
		s, err := tag.StringVal()
		if err != nil {
			return
		}
		tags = append(tags, tagValue{id: id, typ: typeASCII, count: uint32(len(s) + 1), data: asciiValue(s)})
	}
	add(tagMake, exif.Make)
	add(tagModel, exif.Model)
	add(tagSoftware, exif.Software)
	add(tagDateTime, exif.DateTime)
	add(tagDateTimeOriginal, exif.DateTimeOriginal)

	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			tags = append(tags, tagValue{id: tagOrientation, typ: typeShort, count: 1, data: shortValue(uint16(v))})
		}
	}

	return tags
}

func shortValue(v uint16) []byte {
	return []byte{byte(v), byte(v >> 8)}
}

// buildTags turns an Update plus any preserved fields into the final IFD0 /
// GPS IFD tag lists ready for buildExifTIFF. When u sets no location, the
// source's existing GPS latitude/longitude (if any) is re-encoded.
func buildTags(existing *exif.Exif, u Update) (ifd0 []tagValue, gps []tagValue) {
	ifd0 = preservedIFD0Fields(existing)

	if u.Latitude == nil && u.Longitude == nil && existing != nil {
		if lat, lon, err := existing.LatLong(); err == nil {
			u.Latitude, u.Longitude = &lat, &lon
		}
	}

	if u.TakenAt != nil {
		ifd0 = replaceTag(ifd0, tagValue{
			id:    tagDateTimeOriginal,
			typ:   typeASCII,
			count: 20,
			data:  asciiValue(u.TakenAt.Format("2006:01:02 15:04:05")),
		})
	}

	if u.Orientation != nil {
		ifd0 = replaceTag(ifd0, tagValue{
			id:    tagOrientation,
			typ:   typeShort,
			count: 1,
			data:  shortValue(uint16(*u.Orientation)),
		})
	}

	if u.Latitude != nil && u.Longitude != nil {
		latRef := "N"
		lat := *u.Latitude
		if lat < 0 {
			latRef = "S"
			lat = -lat
		}
		lonRef := "E"
		lon := *u.Longitude
		if lon < 0 {
			lonRef = "W"
			lon = -lon
		}

		gps = []tagValue{
			{id: tagGPSLatitudeRef, typ: typeASCII, count: 2, data: asciiValue(latRef)},
			{id: tagGPSLatitude, typ: typeRational, count: 3, data: dmsRational(lat)},
			{id: tagGPSLongitudeRef, typ: typeASCII, count: 2, data: asciiValue(lonRef)},
			{id: tagGPSLongitude, typ: typeRational, count: 3, data: dmsRational(lon)},
		}
	}

	return ifd0, gps
}

// dmsRational converts an unsigned decimal-degree value into EXIF's
// degrees/minutes/seconds rational triple, scaling the seconds component by
// 1000 so sub-second precision survives the integer rational encoding.
func dmsRational(decimal float64) []byte {
	deg := math.Floor(decimal)
	minFloat := (decimal - deg) * 60
	min := math.Floor(minFloat)
	sec := (minFloat - min) * 60
	return rationalValue(deg, min, sec)
}

func replaceTag(tags []tagValue, t tagValue) []tagValue {
	for i, existing := range tags {
		if existing.id == t.id {
			tags[i] = t
			return tags
		}
	}
	return append(tags, t)
}

func readExif(path string) *exif.Exif {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	x, err := exif.Decode(f)
	if err != nil {
		return nil
	}
	return x
}
