package rawdecode

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Minimal TIFF tag IDs, just the ones a Bayer-plane extraction needs.
const (
	tagImageWidth    = 256
	tagImageLength   = 257
	tagBitsPerSample = 258
	tagCompression   = 259
	tagStripOffsets  = 273
	tagCFAPattern    = 33422
)

type ifdEntry struct {
	tag      uint16
	typ      uint16
	count    uint32
	valueRaw [4]byte
}

type ifd struct {
	entries []ifdEntry
	order   binary.ByteOrder
	r       io.ReaderAt
}

// readIFD parses a single TIFF Image File Directory at the given offset:
// a 2-byte entry count, that many 12-byte entries, then a 4-byte offset to
// the next IFD (ignored — RAW sensor data lives in the first IFD).
func readIFD(r io.ReaderAt, order binary.ByteOrder, offset int64) (*ifd, error) {
	countBuf := make([]byte, 2)
	if _, err := r.ReadAt(countBuf, offset); err != nil {
		return nil, fmt.Errorf("reading IFD entry count: %w", err)
	}
	count := order.Uint16(countBuf)

	entries := make([]ifdEntry, count)
	for i := 0; i < int(count); i++ {
		buf := make([]byte, 12)
		if _, err := r.ReadAt(buf, offset+2+int64(i)*12); err != nil {
			return nil, fmt.Errorf("reading IFD entry %d: %w", i, err)
		}
		e := ifdEntry{
			tag:   order.Uint16(buf[0:2]),
			typ:   order.Uint16(buf[2:4]),
			count: order.Uint32(buf[4:8]),
		}
		copy(e.valueRaw[:], buf[8:12])
		entries[i] = e
	}

	return &ifd{entries: entries, order: order, r: r}, nil
}

// uint returns a tag's value interpreted as an unsigned integer, or 0 if the
// tag is absent. Only handles the SHORT/LONG types a Bayer-plane extraction
// actually encounters.
func (d *ifd) uint(tag uint16) uint32 {
	for _, e := range d.entries {
		if e.tag != tag {
			continue
		}
		switch e.typ {
		case 3: // SHORT
			return uint32(d.order.Uint16(e.valueRaw[:2]))
		case 4: // LONG
			return d.order.Uint32(e.valueRaw[:4])
		}
	}
	return 0
}

// ascii returns a tag's value interpreted as a NUL-terminated ASCII string
// stored inline (4 bytes or fewer), or "" if absent or out of line.
func (d *ifd) ascii(tag uint16) string {
	for _, e := range d.entries {
		if e.tag != tag || e.typ != 2 {
			continue
		}
		n := e.count
		if n > 4 {
			n = 4
		}
		b := e.valueRaw[:n]
		for i, c := range b {
			if c == 0 {
				b = b[:i]
				break
			}
		}
		return string(b)
	}
	return ""
}
