package compressor

import (
	"bytes"
	"encoding/binary"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"heavy-image-compressor/internal/logger"
	"heavy-image-compressor/internal/metadata"
)

// newTestCompressor returns a compressor that processes files of any size.
func newTestCompressor(params CompressionParams) *DefaultCompressor {
	c := NewDefaultCompressor(params, logger.Discard())
	c.skipThreshold = 0
	return c
}

func noiseImage(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(42))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xFF
	}
	return img
}

func encode(t *testing.T, img image.Image, format imaging.Format, opts ...imaging.EncodeOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format, opts...))
	return buf.Bytes()
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func taskFor(t *testing.T, path string) ImageTask {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return ImageTask{Path: path, Size: info.Size(), Format: FormatFromExt(filepath.Ext(path))}
}

// orientationTIFF builds a little-endian TIFF block with a single orientation entry.
func orientationTIFF(o metadata.Orientation) []byte {
	buf := make([]byte, 8+2+12+4)
	copy(buf, "II")
	binary.LittleEndian.PutUint16(buf[2:], 42)
	binary.LittleEndian.PutUint32(buf[4:], 8)
	binary.LittleEndian.PutUint16(buf[8:], 1)
	binary.LittleEndian.PutUint16(buf[10:], metadata.OrientationTag)
	binary.LittleEndian.PutUint16(buf[12:], 3)
	binary.LittleEndian.PutUint32(buf[14:], 1)
	binary.LittleEndian.PutUint16(buf[18:], uint16(o))
	return buf
}
