package compressor

import (
	"errors"
	"iter"
	"math"
	"strings"
	"time"
)

// MiB is the unit used for every size shown to the user.
const MiB = 1024 * 1024

// SkipThreshold is the size at or below which a file is never re-encoded,
// whatever the target size.
const SkipThreshold int64 = 19 * MiB

const (
	DefaultTargetMB   = 19.0
	DefaultMinQuality = 85
	MaxQuality        = 100
	SidecarSuffix     = "_compressed"
)

// ErrNotFound is returned when the folder to scan is missing or is not a directory.
var ErrNotFound = errors.New("folder not found")

// Format is the encoder selected for an image once it has been decoded.
type Format int

const (
	FormatUnsupported Format = iota
	FormatJPEG
	FormatPNG
)

// String returns the string representation of the Format.
func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "JPEG"
	case FormatPNG:
		return "PNG"
	default:
		return "Unsupported"
	}
}

// FormatFromExt maps a file extension to a Format, case-insensitively.
func FormatFromExt(ext string) Format {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".png":
		return FormatPNG
	default:
		return FormatUnsupported
	}
}

func formatFromDecoder(name string) Format {
	switch name {
	case "jpeg":
		return FormatJPEG
	case "png":
		return FormatPNG
	default:
		return FormatUnsupported
	}
}

// ImageTask is a candidate file found by Scan.
type ImageTask struct {
	Path   string
	Size   int64
	Format Format // guessed from the extension; the decoder has the final say
}

// Status is the outcome of processing one file.
type Status int

const (
	StatusSkipped Status = iota
	StatusCompressed
	StatusUnfit
	StatusUnsupported
	StatusError
)

// String returns the string representation of the Status.
func (s Status) String() string {
	switch s {
	case StatusSkipped:
		return "skipped"
	case StatusCompressed:
		return "compressed"
	case StatusUnfit:
		return "unfit"
	case StatusUnsupported:
		return "unsupported"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// CompressionParams defines parameters for the image compression process.
type CompressionParams struct {
	TargetBytes int64
	MinQuality  int
	MaxQuality  int
	Overwrite   bool
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() CompressionParams {
	return CompressionParams{
		TargetBytes: TargetBytes(DefaultTargetMB),
		MinQuality:  DefaultMinQuality,
		MaxQuality:  MaxQuality,
	}
}

// TargetBytes converts a size in MiB to the largest byte count that still fits.
func TargetBytes(mb float64) int64 {
	return int64(math.Floor(mb * MiB))
}

// CompressionResult describes the result of processing a single file.
type CompressionResult struct {
	Task         ImageTask
	OutputPath   string
	Format       string // decoder format name, upper-case
	Status       Status
	Label        string
	Success      bool
	Quality      int // chosen JPEG quality, 0 when none was chosen
	OriginalSize int64
	// FinalSize is the written size on success. Otherwise it is the smallest
	// attempt, or the original size when nothing was attempted.
	FinalSize  int64
	StartedAt  time.Time
	FinishedAt time.Time
	Error      error
}

// Compressor defines the interface for finding and shrinking heavy images.
type Compressor interface {
	// Scan lists the candidate images below root.
	Scan(root string) (iter.Seq[ImageTask], error)
	// Process handles one image. Failures are reported in the result.
	Process(task ImageTask) CompressionResult
}
