package compressor

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"heavy-image-compressor/internal/metadata"
)

// EncodeFunc encodes an image at the given JPEG quality.
type EncodeFunc func(quality int) ([]byte, error)

// SearchResult is the outcome of a quality search.
type SearchResult struct {
	Success bool
	Quality int    // highest quality that fits; 0 when none does
	Data    []byte // encoding at Quality; nil when none fits
	// Size is len(Data) on success. Otherwise it is the size of the last
	// probe, the minimum-quality one and so the smallest attempt.
	Size   int64
	Probes int
}

// SearchQuality binary-searches [minQuality, maxQuality] for the highest
// quality whose encoding is at most targetBytes.
func SearchQuality(encode EncodeFunc, targetBytes int64, minQuality, maxQuality int) (SearchResult, error) {
	var res SearchResult
	var last int64

	lo, hi := minQuality, maxQuality
	for lo <= hi {
		q := (lo + hi) / 2
		data, err := encode(q)
		if err != nil {
			return SearchResult{}, fmt.Errorf("encode at quality %d: %w", q, err)
		}
		res.Probes++

		size := int64(len(data))
		last = size
		if size <= targetBytes {
			res.Success, res.Quality, res.Data, res.Size = true, q, data, size
			lo = q + 1
		} else {
			hi = q - 1
		}
	}

	if !res.Success {
		res.Size = last
	}
	return res, nil
}

// CompressJPEG finds the highest quality in [minQuality, maxQuality] whose
// encoding, metadata included, fits in targetBytes.
func CompressJPEG(img image.Image, meta *metadata.Carrier, targetBytes int64, minQuality, maxQuality int) (SearchResult, error) {
	return SearchQuality(jpegEncoder(img, meta), targetBytes, minQuality, maxQuality)
}

func jpegEncoder(img image.Image, meta *metadata.Carrier) EncodeFunc {
	return func(quality int) ([]byte, error) {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, err
		}
		return meta.Apply(buf.Bytes())
	}
}

// CompressPNG encodes img once at maximum compression and reports whether
// the result fits in targetBytes.
func CompressPNG(img image.Image, meta *metadata.Carrier, targetBytes int64) ([]byte, bool, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, false, fmt.Errorf("encode PNG: %w", err)
	}
	data, err := meta.Apply(buf.Bytes())
	if err != nil {
		return nil, false, fmt.Errorf("copy metadata: %w", err)
	}
	return data, int64(len(data)) <= targetBytes, nil
}
