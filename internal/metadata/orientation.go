package metadata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/rwcarlsen/goexif/exif"
)

// OrientationTag is the TIFF tag id of the EXIF orientation field.
const OrientationTag = 0x0112

const tiffTypeShort = 3

// Orientation is an EXIF orientation value.
type Orientation int

const (
	OrientationNormal     Orientation = 1
	OrientationFlipH      Orientation = 2
	OrientationRotate180  Orientation = 3
	OrientationFlipV      Orientation = 4
	OrientationTranspose  Orientation = 5
	OrientationRotate90   Orientation = 6 // 90° clockwise to display upright
	OrientationTransverse Orientation = 7
	OrientationRotate270  Orientation = 8 // 90° counter-clockwise to display upright
)

var errShortTIFF = errors.New("truncated TIFF block")

// String returns a human-readable description of the orientation.
func (o Orientation) String() string {
	switch o {
	case OrientationNormal:
		return "normal"
	case OrientationFlipH:
		return "mirrored horizontally"
	case OrientationRotate180:
		return "rotated 180°"
	case OrientationFlipV:
		return "mirrored vertically"
	case OrientationTranspose:
		return "transposed"
	case OrientationRotate90:
		return "rotated 90° CW"
	case OrientationTransverse:
		return "transversed"
	case OrientationRotate270:
		return "rotated 90° CCW"
	default:
		return fmt.Sprintf("unknown (%d)", int(o))
	}
}

// ReadOrientation returns the orientation stored in a TIFF-encoded EXIF block.
// Missing, unreadable or out-of-range values yield OrientationNormal.
func ReadOrientation(tiff []byte) Orientation {
	if len(tiff) == 0 {
		return OrientationNormal
	}

	x, err := exif.Decode(bytes.NewReader(tiff))
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		return OrientationNormal
	}

	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < int(OrientationNormal) || v > int(OrientationRotate270) {
		return OrientationNormal
	}
	return Orientation(v)
}

// ResetOrientation returns a copy of the TIFF block with the IFD0 orientation
// entry set to OrientationNormal. Blocks without the entry are returned as-is.
func ResetOrientation(tiff []byte) ([]byte, error) {
	if len(tiff) < 8 {
		return nil, errShortTIFF
	}
	out := bytes.Clone(tiff)

	var order binary.ByteOrder
	switch string(out[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid TIFF byte order %q", out[:2])
	}

	ifd := int64(order.Uint32(out[4:8]))
	if ifd < 8 || ifd+2 > int64(len(out)) {
		return nil, errShortTIFF
	}
	count := int64(order.Uint16(out[ifd:]))
	for i := int64(0); i < count; i++ {
		entry := ifd + 2 + i*12
		if entry+12 > int64(len(out)) {
			return nil, errShortTIFF
		}
		if order.Uint16(out[entry:]) != OrientationTag {
			continue
		}
		if typ := order.Uint16(out[entry+2:]); typ != tiffTypeShort {
			return nil, fmt.Errorf("orientation entry has type %d, want SHORT", typ)
		}
		order.PutUint16(out[entry+8:], uint16(OrientationNormal))
		return out, nil
	}
	return out, nil
}
