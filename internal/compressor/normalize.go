package compressor

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"heavy-image-compressor/internal/metadata"
)

// Decoded is an image with its orientation baked into the pixels.
type Decoded struct {
	Image      image.Image
	Format     Format
	FormatName string // upper-case decoder name, e.g. "BMP"
	// Meta is copied onto every re-encoding. Its EXIF block already has
	// the orientation reset to normal.
	Meta *metadata.Carrier
	// Orientation is the value the source declared before normalization.
	Orientation metadata.Orientation
}

// Normalize decodes raw image bytes and applies the EXIF orientation so the
// pixels are upright.
func Normalize(data []byte) (*Decoded, error) {
	// The format tag is read from the header before anything transforms the
	// image.
	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dec := &Decoded{
		Image:       img,
		Format:      formatFromDecoder(name),
		FormatName:  strings.ToUpper(name),
		Orientation: metadata.OrientationNormal,
	}
	if dec.Format == FormatUnsupported {
		return dec, nil
	}

	// The decoder accepted the stream, so a metadata layout it tolerates but
	// the segment walker does not only costs the metadata.
	meta, orientation, err := metadata.Extract(name, data)
	if err == nil {
		dec.Meta = meta
		dec.Orientation = orientation
	}
	dec.Image = Orient(img, dec.Orientation)
	return dec, nil
}

// Orient returns img transformed so that an image stored with the given EXIF
// orientation displays upright with orientation 1.
func Orient(img image.Image, o metadata.Orientation) image.Image {
	switch o {
	case metadata.OrientationFlipH:
		return imaging.FlipH(img)
	case metadata.OrientationRotate180:
		return imaging.Rotate180(img)
	case metadata.OrientationFlipV:
		return imaging.FlipV(img)
	case metadata.OrientationTranspose:
		return imaging.Transpose(img)
	case metadata.OrientationRotate90:
		return imaging.Rotate270(img)
	case metadata.OrientationTransverse:
		return imaging.Transverse(img)
	case metadata.OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
