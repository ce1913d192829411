package compressor

import (
	"bytes"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heavy-image-compressor/internal/logger"
	"heavy-image-compressor/internal/metadata"
)

func TestShouldProcess(t *testing.T) {
	c := NewDefaultCompressor(DefaultParams(), logger.Discard())

	assert.False(t, c.ShouldProcess(ImageTask{Size: 0}))
	assert.False(t, c.ShouldProcess(ImageTask{Size: 19 * MiB}))
	assert.True(t, c.ShouldProcess(ImageTask{Size: 19*MiB + 1}))

	// The gate does not move with the target size.
	small := DefaultParams()
	small.TargetBytes = TargetBytes(1)
	c = NewDefaultCompressor(small, logger.Discard())
	assert.False(t, c.ShouldProcess(ImageTask{Size: 5 * MiB}))
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.JPG", []byte("a"))
	writeFile(t, dir, "b.jpeg", []byte("bb"))
	writeFile(t, dir, "c.png", []byte("ccc"))
	writeFile(t, dir, "d.txt", []byte("d"))
	writeFile(t, dir, "sub/e.Png", []byte("eeee"))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "x.jpg"), 0755))

	c := NewDefaultCompressor(DefaultParams(), logger.Discard())
	seq, err := c.Scan(dir)
	require.NoError(t, err)

	tasks := slices.Collect(seq)
	require.Len(t, tasks, 4)
	assert.Equal(t, ImageTask{Path: filepath.Join(dir, "a.JPG"), Size: 1, Format: FormatJPEG}, tasks[0])
	assert.Equal(t, ImageTask{Path: filepath.Join(dir, "b.jpeg"), Size: 2, Format: FormatJPEG}, tasks[1])
	assert.Equal(t, ImageTask{Path: filepath.Join(dir, "c.png"), Size: 3, Format: FormatPNG}, tasks[2])
	assert.Equal(t, ImageTask{Path: filepath.Join(dir, "sub", "e.Png"), Size: 4, Format: FormatPNG}, tasks[3])
}

func TestScan_StopsWhenConsumerStops(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.jpg", []byte("a"))
	writeFile(t, dir, "b.jpg", []byte("b"))

	c := NewDefaultCompressor(DefaultParams(), logger.Discard())
	seq, err := c.Scan(dir)
	require.NoError(t, err)

	var seen int
	for range seq {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestScan_NotFound(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.jpg", []byte("a"))
	c := NewDefaultCompressor(DefaultParams(), logger.Discard())

	_, err := c.Scan(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.Scan(file)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, "/p/IMG_1.JPG", OutputPath("/p/IMG_1.JPG", true))
	assert.Equal(t, "/p/IMG_1_compressed.JPG", OutputPath("/p/IMG_1.JPG", false))
	assert.Equal(t, "/p/a.b_compressed.png", OutputPath("/p/a.b.png", false))
}

func TestNormalize_BakesOrientation(t *testing.T) {
	src := noiseImage(3, 2)
	carrier := &metadata.Carrier{Format: "png", Exif: orientationTIFF(metadata.OrientationRotate90)}
	data, err := carrier.Apply(encode(t, src, imaging.PNG))
	require.NoError(t, err)

	dec, err := Normalize(data)
	require.NoError(t, err)

	assert.Equal(t, FormatPNG, dec.Format)
	assert.Equal(t, "PNG", dec.FormatName)
	assert.Equal(t, metadata.OrientationRotate90, dec.Orientation)
	assert.Equal(t, metadata.OrientationNormal, metadata.ReadOrientation(dec.Meta.Exif))

	got := imaging.Clone(dec.Image)
	require.Equal(t, 2, got.Bounds().Dx())
	require.Equal(t, 3, got.Bounds().Dy())
	// Clockwise quarter turn: source (x, y) lands on (h-1-y, x).
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			assert.Equal(t, src.NRGBAAt(x, y), got.NRGBAAt(1-y, x), "pixel (%d,%d)", x, y)
		}
	}
}

func TestNormalize_BakesJPEGOrientation(t *testing.T) {
	const w, h = 6, 4
	plain := encode(t, noiseImage(w, h), imaging.JPEG, imaging.JPEGQuality(95))
	decoded, err := imaging.Decode(bytes.NewReader(plain))
	require.NoError(t, err)
	src := imaging.Clone(decoded)

	cases := []struct {
		orientation metadata.Orientation
		// dst maps a source pixel to where it lands once upright.
		dst func(x, y int) (int, int)
	}{
		{metadata.OrientationRotate90, func(x, y int) (int, int) { return h - 1 - y, x }},
		{metadata.OrientationRotate270, func(x, y int) (int, int) { return y, w - 1 - x }},
	}
	for _, tc := range cases {
		t.Run(tc.orientation.String(), func(t *testing.T) {
			carrier := &metadata.Carrier{Format: "jpeg", Exif: orientationTIFF(tc.orientation)}
			data, err := carrier.Apply(plain)
			require.NoError(t, err)

			dec, err := Normalize(data)
			require.NoError(t, err)

			assert.Equal(t, FormatJPEG, dec.Format)
			assert.Equal(t, tc.orientation, dec.Orientation)
			assert.Equal(t, metadata.OrientationNormal, metadata.ReadOrientation(dec.Meta.Exif))

			got := imaging.Clone(dec.Image)
			require.Equal(t, h, got.Bounds().Dx())
			require.Equal(t, w, got.Bounds().Dy())
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					dx, dy := tc.dst(x, y)
					assert.Equal(t, src.NRGBAAt(x, y), got.NRGBAAt(dx, dy), "pixel (%d,%d)", x, y)
				}
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	carrier := &metadata.Carrier{Format: "png", Exif: orientationTIFF(metadata.OrientationTransverse)}
	data, err := carrier.Apply(encode(t, noiseImage(5, 3), imaging.PNG))
	require.NoError(t, err)

	once, err := Normalize(data)
	require.NoError(t, err)

	reencoded, _, err := CompressPNG(once.Image, once.Meta, 1<<30)
	require.NoError(t, err)
	twice, err := Normalize(reencoded)
	require.NoError(t, err)

	assert.Equal(t, metadata.OrientationNormal, twice.Orientation)
	assert.Equal(t, imaging.Clone(once.Image).Pix, imaging.Clone(twice.Image).Pix)
}

func TestNormalize_Garbage(t *testing.T) {
	_, err := Normalize([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestProcess_SkipsLightFiles(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(16, 16), imaging.PNG)
	path := writeFile(t, dir, "small.png", data)

	c := NewDefaultCompressor(DefaultParams(), logger.Discard())
	res := c.Process(taskFor(t, path))

	assert.Equal(t, StatusSkipped, res.Status)
	assert.Equal(t, "skip (≤19 MB)", res.Label)
	assert.Equal(t, int64(len(data)), res.FinalSize)
	assert.Empty(t, res.OutputPath)
	assertUnchanged(t, path, data)
	assert.NoFileExists(t, OutputPath(path, false))
}

func TestProcess_JPEGSidecar(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(64, 48), imaging.JPEG, imaging.JPEGQuality(100))
	path := writeFile(t, dir, "photo.jpg", data)

	c := newTestCompressor(DefaultParams())
	res := c.Process(taskFor(t, path))

	require.Equal(t, StatusCompressed, res.Status, res.Label)
	assert.True(t, res.Success)
	assert.Equal(t, 100, res.Quality)
	assert.Equal(t, "JPEG ✓ (q=100)", res.Label)
	assert.Equal(t, "JPEG", res.Format)
	assert.Equal(t, filepath.Join(dir, "photo_compressed.jpg"), res.OutputPath)

	written, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, int64(len(written)), res.FinalSize)
	assertUnchanged(t, path, data)
	assert.NoFileExists(t, res.OutputPath+".tmp")
}

func TestProcess_JPEGOverwrite(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(64, 48), imaging.JPEG, imaging.JPEGQuality(100))
	path := writeFile(t, dir, "photo.JPEG", data)

	params := DefaultParams()
	params.Overwrite = true
	params.MinQuality = 10
	dec, err := Normalize(data)
	require.NoError(t, err)
	atMin, err := jpegEncoder(dec.Image, dec.Meta)(10)
	require.NoError(t, err)
	params.TargetBytes = int64(len(atMin))

	res := newTestCompressor(params).Process(taskFor(t, path))

	require.Equal(t, StatusCompressed, res.Status, res.Label)
	assert.Equal(t, path, res.OutputPath)
	assert.GreaterOrEqual(t, res.Quality, 10)
	assert.LessOrEqual(t, res.FinalSize, params.TargetBytes)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(written)), res.FinalSize)
	assert.NoFileExists(t, OutputPath(path, false))
}

func TestProcess_JPEGUnfitWritesNothing(t *testing.T) {
	for _, overwrite := range []bool{false, true} {
		dir := t.TempDir()
		data := encode(t, noiseImage(64, 48), imaging.JPEG, imaging.JPEGQuality(95))
		path := writeFile(t, dir, "big.jpg", data)

		params := DefaultParams()
		params.TargetBytes = 100
		params.Overwrite = overwrite
		res := newTestCompressor(params).Process(taskFor(t, path))

		dec, err := Normalize(data)
		require.NoError(t, err)
		atMin, err := jpegEncoder(dec.Image, dec.Meta)(85)
		require.NoError(t, err)

		assert.Equal(t, StatusUnfit, res.Status)
		assert.False(t, res.Success)
		assert.Zero(t, res.Quality)
		assert.Equal(t, "JPEG ✗ (≥q85 still big)", res.Label)
		assert.Equal(t, int64(len(atMin)), res.FinalSize)
		assert.Empty(t, res.OutputPath)
		assertUnchanged(t, path, data)
		assert.NoFileExists(t, OutputPath(path, false))
	}
}

func TestProcess_PNG(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(32, 32), imaging.PNG)
	path := writeFile(t, dir, "shot.png", data)

	res := newTestCompressor(DefaultParams()).Process(taskFor(t, path))

	require.Equal(t, StatusCompressed, res.Status, res.Label)
	assert.Equal(t, "PNG ✓", res.Label)
	assert.Zero(t, res.Quality)
	assert.FileExists(t, filepath.Join(dir, "shot_compressed.png"))
	assertUnchanged(t, path, data)
}

func TestProcess_PNGStillBigIsWritten(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(32, 32), imaging.PNG)
	path := writeFile(t, dir, "shot.png", data)

	params := DefaultParams()
	params.TargetBytes = 10
	res := newTestCompressor(params).Process(taskFor(t, path))

	assert.Equal(t, StatusUnfit, res.Status)
	assert.Equal(t, "PNG ✗ (still big)", res.Label)
	written, err := os.ReadFile(filepath.Join(dir, "shot_compressed.png"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(written)), res.FinalSize)
}

func TestProcess_Unsupported(t *testing.T) {
	dir := t.TempDir()
	data := encode(t, noiseImage(16, 16), imaging.BMP)
	path := writeFile(t, dir, "scan.jpg", data)

	res := newTestCompressor(DefaultParams()).Process(taskFor(t, path))

	assert.Equal(t, StatusUnsupported, res.Status)
	assert.Equal(t, "BMP unsupported", res.Label)
	assert.Equal(t, int64(len(data)), res.FinalSize)
	assertUnchanged(t, path, data)
	assert.NoFileExists(t, OutputPath(path, false))
}

func TestProcess_CorruptFileIsReported(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.jpg", []byte("\xFF\xD8\xFF garbage"))

	res := newTestCompressor(DefaultParams()).Process(taskFor(t, path))

	assert.Equal(t, StatusError, res.Status)
	assert.Error(t, res.Error)
	assert.True(t, strings.HasPrefix(res.Label, "error: "), res.Label)
	assert.False(t, res.FinishedAt.IsZero())
}

func TestProcess_MissingFileIsReported(t *testing.T) {
	task := ImageTask{Path: filepath.Join(t.TempDir(), "gone.jpg"), Size: 30 * MiB, Format: FormatJPEG}

	res := NewDefaultCompressor(DefaultParams(), logger.Discard()).Process(task)

	assert.Equal(t, StatusError, res.Status)
	assert.ErrorIs(t, res.Error, os.ErrNotExist)
}

func assertUnchanged(t *testing.T, path string, want []byte) {
	t.Helper()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, got, "original file must be untouched")
}
