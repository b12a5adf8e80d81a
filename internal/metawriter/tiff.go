package metawriter

import "sort"

// TIFF/EXIF tag IDs this writer reads, preserves, or writes. Only a small,
// well-known subset is preserved across a rewrite (see preservedIFD0Fields
// and buildTags in metawriter.go);
// everything else un-named here is dropped rather than risk re-emitting a
// stale sub-IFD pointer.
const (
	tagMake             = 0x010F
	tagModel            = 0x0110
	tagOrientation      = 0x0112
	tagXResolution      = 0x011A
	tagYResolution      = 0x011B
	tagResolutionUnit   = 0x0128
	tagSoftware         = 0x0131
	tagDateTime         = 0x0132
	tagDateTimeOriginal = 0x9003
	tagGPSInfoPointer   = 0x8825

	tagGPSLatitudeRef  = 0x0001
	tagGPSLatitude     = 0x0002
	tagGPSLongitudeRef = 0x0003
	tagGPSLongitude    = 0x0004
)

const (
	typeASCII    = 2
	typeShort    = 3
	typeLong     = 4
	typeRational = 5
)

// tagValue is one TIFF IFD entry awaiting serialization: an already
// little-endian-encoded value of typ*count bytes.
type tagValue struct {
	id    uint16
	typ   uint16
	count uint32
	data  []byte
}

// buildExifTIFF assembles a minimal little-endian TIFF/EXIF blob containing
// an IFD0 (ifd0Tags) and, if gpsTags is non-empty, a GPS sub-IFD linked via
// a GPSInfoIFDPointer tag.
func buildExifTIFF(ifd0Tags, gpsTags []tagValue) []byte {
	const headerSize = 8

	entries := append([]tagValue{}, ifd0Tags...)
	var gpsPointerIdx = -1
	if len(gpsTags) > 0 {
		gpsPointerIdx = len(entries)
		entries = append(entries, tagValue{id: tagGPSInfoPointer, typ: typeLong, count: 1, data: make([]byte, 4)})
	}

	ifd0Table, ifd0Overflow := layoutIFD(entries, headerSize)

	var gpsTable, gpsOverflow []byte
	if len(gpsTags) > 0 {
		gpsOffset := uint32(headerSize + len(ifd0Table) + len(ifd0Overflow))
		gpsTable, gpsOverflow = layoutIFD(gpsTags, gpsOffset)
		putUint32(entries[gpsPointerIdx].data, gpsOffset)
		ifd0Table, ifd0Overflow = layoutIFD(entries, headerSize)
	}

	out := make([]byte, 0, headerSize+len(ifd0Table)+len(ifd0Overflow)+len(gpsTable)+len(gpsOverflow))
	out = append(out, 'I', 'I', 42, 0)
	out = append(out, 8, 0, 0, 0) // IFD0 starts right after the 8-byte header
	out = append(out, ifd0Table...)
	out = append(out, ifd0Overflow...)
	out = append(out, gpsTable...)
	out = append(out, gpsOverflow...)
	return out
}

// layoutIFD serializes entries (sorted ascending by tag id, as TIFF
// requires) into a table of 12-byte directory entries plus a 4-byte
// next-IFD offset (always 0, terminating the chain), and an overflow area
// for any value wider than 4 bytes. tableOffset is this IFD's own absolute
// position, needed to compute overflow offsets.
func layoutIFD(entries []tagValue, tableOffset uint32) (table []byte, overflow []byte) {
	sorted := append([]tagValue{}, entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].id < sorted[j].id })

	tableSize := uint32(2 + 12*len(sorted) + 4)
	overflowCursor := tableOffset + tableSize

	table = make([]byte, 0, tableSize)
	table = append(table, byte(len(sorted)), byte(len(sorted)>>8))

	for _, e := range sorted {
		entry := make([]byte, 12)
		putUint16(entry[0:2], e.id)
		putUint16(entry[2:4], e.typ)
		putUint32(entry[4:8], e.count)

		if len(e.data) <= 4 {
			copy(entry[8:12], e.data)
		} else {
			putUint32(entry[8:12], overflowCursor)
			overflow = append(overflow, e.data...)
			if len(e.data)%2 != 0 {
				overflow = append(overflow, 0) // TIFF values must start on a word boundary
			}
			overflowCursor += uint32(len(e.data))
			if len(e.data)%2 != 0 {
				overflowCursor++
			}
		}
		table = append(table, entry...)
	}

	table = append(table, 0, 0, 0, 0) // no further IFDs
	return table, overflow
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// asciiValue returns a NUL-terminated ASCII tag value, the encoding TIFF
// requires for string tags.
func asciiValue(s string) []byte {
	return append([]byte(s), 0)
}

// rationalValue encodes three D/M/S components as unsigned rationals with
// denominator scaling, matching the precision EXIF GPS fields use.
func rationalValue(deg, min, sec float64) []byte {
	out := make([]byte, 24)
	putUint32(out[0:4], uint32(deg))
	putUint32(out[4:8], 1)
	putUint32(out[8:12], uint32(min))
	putUint32(out[12:16], 1)
	putUint32(out[16:20], uint32(sec*1000))
	putUint32(out[20:24], 1000)
	return out
}
