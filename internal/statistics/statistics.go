package statistics

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"heavy-image-compressor/internal/compressor"
)

// Statistics contains all statistics for a compression run.
type Statistics struct {
	TotalFilesFound     int64
	TotalFilesProcessed int64
	FilesCompressed     int64
	FilesUnfit          int64
	FilesSkipped        int64
	FilesUnsupported    int64
	FilesWithErrors     int64

	// Bytes of the files that were compressed, before and after.
	BytesBefore int64
	BytesAfter  int64

	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	FilesPerSecond float64

	Errors []StatError

	mutex sync.RWMutex

	FileTypeStats map[string]int64
}

// StatError represents an error that occurred during processing.
type StatError struct {
	FilePath  string
	Operation string
	Error     string
	Timestamp time.Time
}

// NewStatistics returns a new Statistics instance.
func NewStatistics() *Statistics {
	return &Statistics{
		StartTime:     time.Now(),
		FileTypeStats: make(map[string]int64),
		Errors:        make([]StatError, 0),
	}
}

// SetFilesFound records how many candidate images the scan produced.
func (s *Statistics) SetFilesFound(n int) {
	atomic.StoreInt64(&s.TotalFilesFound, int64(n))
}

// Record accounts for the outcome of one file.
func (s *Statistics) Record(res compressor.CompressionResult) {
	atomic.AddInt64(&s.TotalFilesProcessed, 1)

	switch res.Status {
	case compressor.StatusSkipped:
		atomic.AddInt64(&s.FilesSkipped, 1)
		return
	case compressor.StatusCompressed:
		atomic.AddInt64(&s.FilesCompressed, 1)
		atomic.AddInt64(&s.BytesBefore, res.OriginalSize)
		atomic.AddInt64(&s.BytesAfter, res.FinalSize)
	case compressor.StatusUnfit:
		atomic.AddInt64(&s.FilesUnfit, 1)
	case compressor.StatusUnsupported:
		atomic.AddInt64(&s.FilesUnsupported, 1)
	case compressor.StatusError:
		atomic.AddInt64(&s.FilesWithErrors, 1)
		msg := strings.TrimPrefix(res.Label, "error: ")
		if res.Error != nil {
			msg = res.Error.Error()
		}
		s.AddError(res.Task.Path, "compress", msg)
	}

	if res.Format != "" {
		s.IncrementFileType(res.Format)
	}
}

// IncrementFileType increases the count for a specific file type by 1.
func (s *Statistics) IncrementFileType(fileType string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.FileTypeStats[fileType]++
}

// AddError records an error that occurred during processing.
func (s *Statistics) AddError(filePath, operation, errorMsg string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.Errors = append(s.Errors, StatError{
		FilePath:  filePath,
		Operation: operation,
		Error:     errorMsg,
		Timestamp: time.Now(),
	})
}

// Finalize calculates final statistics such as duration and files per second.
func (s *Statistics) Finalize() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)

	totalProcessed := atomic.LoadInt64(&s.TotalFilesProcessed)
	if s.Duration.Seconds() > 0 {
		s.FilesPerSecond = float64(totalProcessed) / s.Duration.Seconds()
	}
}

// SummaryLine returns the one-line summary printed at the end of a run.
func (s *Statistics) SummaryLine() string {
	line := fmt.Sprintf("%d compressed, %d still big, %d skipped, %d unsupported, %d errors",
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesUnfit),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesUnsupported),
		atomic.LoadInt64(&s.FilesWithErrors))

	if saved := s.BytesSaved(); saved > 0 {
		line += fmt.Sprintf(" (saved %s)", formatBytes(saved))
	}
	return line
}

// BytesSaved returns how much smaller the compressed files got.
func (s *Statistics) BytesSaved() int64 {
	return atomic.LoadInt64(&s.BytesBefore) - atomic.LoadInt64(&s.BytesAfter)
}

// GetSummary returns a formatted summary of all statistics.
func (s *Statistics) GetSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return fmt.Sprintf(`Heavy Image Compressor Statistics Summary:

Files:
		Total Found: %d
		Total Processed: %d
		Compressed: %d
		Still Big: %d
		Skipped: %d
		Unsupported: %d
		Errors: %d

Size:
		Before: %s
		After: %s
		Saved: %s

Performance:
		Duration: %v
		Files/Second: %.2f`,
		atomic.LoadInt64(&s.TotalFilesFound),
		atomic.LoadInt64(&s.TotalFilesProcessed),
		atomic.LoadInt64(&s.FilesCompressed),
		atomic.LoadInt64(&s.FilesUnfit),
		atomic.LoadInt64(&s.FilesSkipped),
		atomic.LoadInt64(&s.FilesUnsupported),
		atomic.LoadInt64(&s.FilesWithErrors),
		formatBytes(atomic.LoadInt64(&s.BytesBefore)),
		formatBytes(atomic.LoadInt64(&s.BytesAfter)),
		formatBytes(s.BytesSaved()),
		s.Duration,
		s.FilesPerSecond)
}

// GetFileTypeBreakdown returns a formatted breakdown of file types processed.
func (s *Statistics) GetFileTypeBreakdown() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.FileTypeStats) == 0 {
		return "No file type statistics available"
	}

	result := "File Type Breakdown:\n"
	for fileType, count := range s.FileTypeStats {
		result += fmt.Sprintf("  %s: %d\n", fileType, count)
	}
	return result
}

// GetErrorSummary returns a summary of errors that occurred during processing.
func (s *Statistics) GetErrorSummary() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.Errors) == 0 {
		return "No errors occurred during processing"
	}

	result := fmt.Sprintf("Errors (%d total):\n", len(s.Errors))
	for i, err := range s.Errors {
		if i >= 10 {
			result += fmt.Sprintf("  ... and %d more errors\n", len(s.Errors)-10)
			break
		}
		result += fmt.Sprintf("  [%s] %s: %s - %s\n",
			err.Timestamp.Format("15:04:05"),
			err.Operation,
			err.FilePath,
			err.Error)
	}
	return result
}

// formatBytes returns a human-readable string for a byte count.
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
