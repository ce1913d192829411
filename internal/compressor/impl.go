package compressor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"heavy-image-compressor/internal/logger"
	"heavy-image-compressor/internal/metadata"
)

const skipLabel = "skip (≤19 MB)"

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	params        CompressionParams
	logger        *logrus.Logger
	skipThreshold int64
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(params CompressionParams, log *logrus.Logger) *DefaultCompressor {
	if params.MaxQuality == 0 {
		params.MaxQuality = MaxQuality
	}
	return &DefaultCompressor{
		params:        params,
		logger:        log,
		skipThreshold: SkipThreshold,
	}
}

// ShouldProcess reports whether the file is heavy enough to be re-encoded.
func (c *DefaultCompressor) ShouldProcess(task ImageTask) bool {
	return task.Size > c.skipThreshold
}

// Process re-encodes a single image and returns a CompressionResult.
func (c *DefaultCompressor) Process(task ImageTask) CompressionResult {
	res := CompressionResult{
		Task:         task,
		Format:       task.Format.String(),
		OriginalSize: task.Size,
		FinalSize:    task.Size,
		StartedAt:    time.Now(),
	}
	log := logger.WithFileOperation(c.logger, task.Path, "compress")

	if !c.ShouldProcess(task) {
		res.Status = StatusSkipped
		res.Label = skipLabel
		log.Debug("File below skip threshold")
		return finish(res)
	}

	data, err := os.ReadFile(task.Path)
	if err != nil {
		return c.fail(res, log, fmt.Errorf("read file: %w", err))
	}

	dec, err := Normalize(data)
	if err != nil {
		return c.fail(res, log, err)
	}
	res.Format = dec.FormatName
	if dec.Orientation != metadata.OrientationNormal {
		log.WithField("orientation", dec.Orientation.String()).Debug("Baked orientation into pixels")
	}

	switch dec.Format {
	case FormatJPEG:
		return c.processJPEG(res, log, dec)
	case FormatPNG:
		return c.processPNG(res, log, dec)
	default:
		res.Status = StatusUnsupported
		res.Label = fmt.Sprintf("%s unsupported", dec.FormatName)
		log.Warnf("Unsupported image format %s", dec.FormatName)
		return finish(res)
	}
}

func (c *DefaultCompressor) processJPEG(res CompressionResult, log *logrus.Entry, dec *Decoded) CompressionResult {
	sr, err := CompressJPEG(dec.Image, dec.Meta, c.params.TargetBytes, c.params.MinQuality, c.params.MaxQuality)
	if err != nil {
		return c.fail(res, log, err)
	}

	if !sr.Success {
		// Nothing is written: the original stays as it was.
		res.Status = StatusUnfit
		res.Label = fmt.Sprintf("JPEG ✗ (≥q%d still big)", c.params.MinQuality)
		res.FinalSize = sr.Size
		log.WithFields(logrus.Fields{
			"min_quality":   c.params.MinQuality,
			"smallest_size": sr.Size,
			"probes":        sr.Probes,
		}).Info("JPEG does not fit the target")
		return finish(res)
	}

	out, err := WriteOutput(res.Task, sr.Data, c.params.Overwrite)
	if err != nil {
		return c.fail(res, log, err)
	}

	res.Status = StatusCompressed
	res.Success = true
	res.Quality = sr.Quality
	res.FinalSize = sr.Size
	res.OutputPath = out
	res.Label = fmt.Sprintf("JPEG ✓ (q=%d)", sr.Quality)
	log.WithFields(logrus.Fields{
		"quality": sr.Quality,
		"size":    sr.Size,
		"probes":  sr.Probes,
		"output":  out,
	}).Info("JPEG compressed")
	return finish(res)
}

func (c *DefaultCompressor) processPNG(res CompressionResult, log *logrus.Entry, dec *Decoded) CompressionResult {
	data, fits, err := CompressPNG(dec.Image, dec.Meta, c.params.TargetBytes)
	if err != nil {
		return c.fail(res, log, err)
	}

	// PNG output is written whether or not it fits.
	out, err := WriteOutput(res.Task, data, c.params.Overwrite)
	if err != nil {
		return c.fail(res, log, err)
	}

	res.OutputPath = out
	res.FinalSize = int64(len(data))
	if fits {
		res.Status = StatusCompressed
		res.Success = true
		res.Label = "PNG ✓"
	} else {
		res.Status = StatusUnfit
		res.Label = "PNG ✗ (still big)"
	}
	log.WithFields(logrus.Fields{
		"size":   res.FinalSize,
		"fits":   fits,
		"output": out,
	}).Info("PNG re-encoded")
	return finish(res)
}

func (c *DefaultCompressor) fail(res CompressionResult, log *logrus.Entry, err error) CompressionResult {
	res.Status = StatusError
	res.Label = "error: " + err.Error()
	res.Error = err
	log.WithError(err).Error("Compression failed")
	return finish(res)
}

func finish(res CompressionResult) CompressionResult {
	res.FinishedAt = time.Now()
	return res
}

// OutputPath returns where the re-encoded image of path is written.
func OutputPath(path string, overwrite bool) string {
	if overwrite {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + SidecarSuffix + ext
}

// WriteOutput stores data for task, replacing the original when overwrite is
// set and writing a sidecar file otherwise. It returns the written path.
func WriteOutput(task ImageTask, data []byte, overwrite bool) (string, error) {
	out := OutputPath(task.Path, overwrite)

	perm := fs.FileMode(0644)
	if info, err := os.Stat(task.Path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpPath := out + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write tmp file: %w", err)
	}
	if err := os.Rename(tmpPath, out); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename error: %w", err)
	}
	return out, nil
}
