package metawriter

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
)

const pngSignature = "\x89PNG\r\n\x1a\n"

// writePNG replaces path's eXIf ancillary chunk (if any) with one built from
// ifd0/gps, inserted right after IHDR, leaving every other chunk
// byte-for-byte identical.
func writePNG(path string, ifd0, gps []tagValue) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("metawriter: reading %s: %w", path, err)
	}
	if len(data) < 8 || string(data[:8]) != pngSignature {
		return fmt.Errorf("metawriter: %s is not a valid PNG", path)
	}

	exifChunk := buildPNGChunk("eXIf", buildExifTIFF(ifd0, gps))

	out := make([]byte, 0, len(data)+len(exifChunk))
	out = append(out, data[:8]...)

	pos := 8
	inserted := false
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		typ := string(data[pos+4 : pos+8])
		chunkEnd := pos + 12 + length
		if length < 0 || chunkEnd > len(data) {
			return fmt.Errorf("metawriter: truncated PNG chunk at offset %d", pos)
		}

		if typ == "eXIf" {
			pos = chunkEnd
			continue
		}

		out = append(out, data[pos:chunkEnd]...)
		if typ == "IHDR" && !inserted {
			out = append(out, exifChunk...)
			inserted = true
		}
		pos = chunkEnd
		if typ == "IEND" {
			break
		}
	}

	if !inserted {
		return fmt.Errorf("metawriter: %s has no IHDR chunk", path)
	}
	if pos < len(data) {
		out = append(out, data[pos:]...)
	}

	return atomicWrite(path, out)
}

// buildPNGChunk assembles a length-prefixed, CRC-terminated PNG chunk.
func buildPNGChunk(typ string, data []byte) []byte {
	out := make([]byte, 0, 12+len(data))
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	out = append(out, length...)
	out = append(out, typ...)
	out = append(out, data...)

	crc := crc32.ChecksumIEEE(append([]byte(typ), data...))
	crcBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(crcBytes, crc)
	out = append(out, crcBytes...)
	return out
}
