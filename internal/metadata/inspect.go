package metadata

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/barasher/go-exiftool"
)

// Info describes a single image file as seen by the decoder.
type Info struct {
	Path        string
	Format      string
	Width       int
	Height      int
	Size        int64
	Orientation Orientation
	HasExif     bool
	HasICC      bool
}

// Inspect reads the header and metadata of an image without decoding pixels.
func Inspect(path string) (*Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}

	info := &Info{
		Path:        path,
		Format:      strings.ToUpper(format),
		Width:       cfg.Width,
		Height:      cfg.Height,
		Size:        int64(len(data)),
		Orientation: OrientationNormal,
	}
	if format == "jpeg" || format == "png" {
		if c, o, err := Extract(format, data); err == nil {
			info.Orientation = o
			info.HasExif = c.Exif != nil
			info.HasICC = len(c.ICC) > 0
		}
	}
	return info, nil
}

// ExiftoolFields returns the requested fields as reported by the exiftool
// binary. Fields exiftool does not report are omitted.
func ExiftoolFields(path string, keys ...string) (map[string]string, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return nil, files[0].Err
	}

	fields := make(map[string]string, len(keys))
	for _, key := range keys {
		if v, err := files[0].GetString(key); err == nil {
			fields[key] = v
		}
	}
	return fields, nil
}
