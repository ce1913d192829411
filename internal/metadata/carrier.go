package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerTEM  = 0x01
	markerRST0 = 0xD0
	markerRST7 = 0xD7
	markerAPP1 = 0xE1
	markerAPP2 = 0xE2
)

var (
	exifHeader   = []byte("Exif\x00\x00")
	iccHeader    = []byte("ICC_PROFILE\x00")
	pngSignature = []byte("\x89PNG\r\n\x1a\n")
)

// Carrier holds the metadata blocks of a source image that are copied onto
// its re-encoded output. Exif is a TIFF block whose orientation has already
// been reset to normal.
type Carrier struct {
	Format string // decoder format name: "jpeg" or "png"
	Exif   []byte
	// ICC holds the APP2 payloads (JPEG) or the iCCP chunk data (PNG).
	ICC [][]byte
}

type jpegSegment struct {
	marker  byte
	payload []byte
}

type pngChunk struct {
	typ  string
	data []byte
}

// Extract collects the EXIF and ICC blocks of a JPEG or PNG stream and returns
// them together with the orientation the source declares.
func Extract(format string, data []byte) (*Carrier, Orientation, error) {
	c := &Carrier{Format: format}
	var rawExif []byte

	switch format {
	case "jpeg":
		segments, err := jpegSegments(data)
		if err != nil {
			return nil, OrientationNormal, err
		}
		for _, s := range segments {
			switch {
			case s.marker == markerAPP1 && rawExif == nil && bytes.HasPrefix(s.payload, exifHeader):
				rawExif = s.payload[len(exifHeader):]
			case s.marker == markerAPP2 && bytes.HasPrefix(s.payload, iccHeader):
				c.ICC = append(c.ICC, bytes.Clone(s.payload))
			}
		}
	case "png":
		chunks, err := pngChunks(data)
		if err != nil {
			return nil, OrientationNormal, err
		}
		for _, ch := range chunks {
			switch {
			case ch.typ == "eXIf" && rawExif == nil:
				rawExif = ch.data
			case ch.typ == "iCCP" && len(c.ICC) == 0:
				c.ICC = append(c.ICC, bytes.Clone(ch.data))
			}
		}
	default:
		return nil, OrientationNormal, fmt.Errorf("no metadata support for format %q", format)
	}

	orientation := ReadOrientation(rawExif)
	if rawExif != nil {
		// An EXIF block whose orientation cannot be reset is dropped rather
		// than carried with a stale rotation.
		if reset, err := ResetOrientation(rawExif); err == nil {
			c.Exif = reset
		}
	}
	return c, orientation, nil
}

// Empty reports whether the carrier has nothing to copy.
func (c *Carrier) Empty() bool {
	return c == nil || (c.Exif == nil && len(c.ICC) == 0)
}

// Apply returns the encoded stream with the carried blocks inserted.
func (c *Carrier) Apply(encoded []byte) ([]byte, error) {
	if c.Empty() {
		return encoded, nil
	}
	switch c.Format {
	case "jpeg":
		return c.applyJPEG(encoded)
	case "png":
		return c.applyPNG(encoded)
	default:
		return nil, fmt.Errorf("no metadata support for format %q", c.Format)
	}
}

func (c *Carrier) applyJPEG(encoded []byte) ([]byte, error) {
	if len(encoded) < 2 || encoded[0] != 0xFF || encoded[1] != markerSOI {
		return nil, errors.New("encoded stream is not a JPEG")
	}

	var buf bytes.Buffer
	buf.Grow(len(encoded) + len(c.Exif) + 64*1024)
	buf.Write(encoded[:2])
	if c.Exif != nil {
		if err := writeJPEGSegment(&buf, markerAPP1, exifHeader, c.Exif); err != nil {
			return nil, err
		}
	}
	for _, icc := range c.ICC {
		if err := writeJPEGSegment(&buf, markerAPP2, icc); err != nil {
			return nil, err
		}
	}
	buf.Write(encoded[2:])
	return buf.Bytes(), nil
}

func (c *Carrier) applyPNG(encoded []byte) ([]byte, error) {
	// Signature followed by the fixed-size IHDR chunk.
	ihdrEnd := len(pngSignature) + 8 + 13 + 4
	if len(encoded) < ihdrEnd || !bytes.HasPrefix(encoded, pngSignature) ||
		string(encoded[len(pngSignature)+4:len(pngSignature)+8]) != "IHDR" {
		return nil, errors.New("encoded stream is not a PNG")
	}

	var buf bytes.Buffer
	buf.Grow(len(encoded) + len(c.Exif) + 64*1024)
	buf.Write(encoded[:ihdrEnd])
	for _, icc := range c.ICC {
		writePNGChunk(&buf, "iCCP", icc)
	}
	if c.Exif != nil {
		writePNGChunk(&buf, "eXIf", c.Exif)
	}
	buf.Write(encoded[ihdrEnd:])
	return buf.Bytes(), nil
}

// jpegSegments lists the marker segments that precede the first scan.
func jpegSegments(data []byte) ([]jpegSegment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("not a JPEG stream")
	}

	var segments []jpegSegment
	off := 2
	for off+4 <= len(data) {
		if data[off] != 0xFF {
			return nil, fmt.Errorf("expected JPEG marker at offset %d", off)
		}
		marker := data[off+1]
		switch {
		case marker == 0xFF:
			off++
			continue
		case marker == markerSOS || marker == markerEOI:
			return segments, nil
		case marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7):
			off += 2
			continue
		}

		size := int(binary.BigEndian.Uint16(data[off+2:]))
		if size < 2 || off+2+size > len(data) {
			return nil, fmt.Errorf("JPEG segment 0x%X at offset %d overruns the stream", marker, off)
		}
		segments = append(segments, jpegSegment{marker: marker, payload: data[off+4 : off+2+size]})
		off += 2 + size
	}
	return segments, nil
}

func writeJPEGSegment(buf *bytes.Buffer, marker byte, parts ...[]byte) error {
	size := 2
	for _, p := range parts {
		size += len(p)
	}
	if size > 0xFFFF {
		return fmt.Errorf("JPEG segment 0x%X too large: %d bytes", marker, size)
	}
	buf.Write([]byte{0xFF, marker, byte(size >> 8), byte(size)})
	for _, p := range parts {
		buf.Write(p)
	}
	return nil
}

func pngChunks(data []byte) ([]pngChunk, error) {
	if !bytes.HasPrefix(data, pngSignature) {
		return nil, errors.New("not a PNG stream")
	}

	var chunks []pngChunk
	off := len(pngSignature)
	for off+8 <= len(data) {
		n := int64(binary.BigEndian.Uint32(data[off:]))
		typ := string(data[off+4 : off+8])
		end := int64(off) + 8 + n + 4
		if end > int64(len(data)) {
			return nil, fmt.Errorf("PNG chunk %s at offset %d overruns the stream", typ, off)
		}
		chunks = append(chunks, pngChunk{typ: typ, data: data[off+8 : int64(off)+8+n]})
		off = int(end)
		if typ == "IEND" {
			break
		}
	}
	return chunks, nil
}

func writePNGChunk(buf *bytes.Buffer, typ string, data []byte) {
	var head [8]byte
	binary.BigEndian.PutUint32(head[:4], uint32(len(data)))
	copy(head[4:], typ)
	buf.Write(head[:])
	buf.Write(data)

	crc := crc32.NewIEEE()
	crc.Write(head[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}
