package batch

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"heavy-image-compressor/internal/compressor"
	"heavy-image-compressor/internal/logger"
	"heavy-image-compressor/internal/report"
	"heavy-image-compressor/internal/statistics"
)

// Runner compresses the images of a folder one after the other.
type Runner struct {
	logger     *logrus.Logger
	stats      *statistics.Statistics
	compressor compressor.Compressor
	reporter   report.Reporter
}

// NewRunner returns a new Runner.
func NewRunner(
	logger *logrus.Logger,
	stats *statistics.Statistics,
	comp compressor.Compressor,
	reporter report.Reporter,
) *Runner {
	return &Runner{
		logger:     logger,
		stats:      stats,
		compressor: comp,
		reporter:   reporter,
	}
}

// Run processes every candidate image below root. Per-file failures are
// reported and do not stop the run. Cancelling ctx stops it before the next
// file; the file in flight is completed.
func (r *Runner) Run(ctx context.Context, root string) error {
	log := logger.WithOperation(r.logger, "batch")
	log.WithField("root", root).Info("Starting compression run")

	seq, err := r.compressor.Scan(root)
	if err != nil {
		return err
	}

	// The total is needed up front for the header and the progress bar.
	tasks := slices.Collect(seq)
	r.stats.SetFilesFound(len(tasks))
	log.Infof("Found %d candidate images", len(tasks))

	r.reporter.Start(root, len(tasks))

	var runErr error
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			log.Warn("Run interrupted")
			runErr = fmt.Errorf("run interrupted: %w", err)
			break
		}

		res := r.compressor.Process(task)
		r.stats.Record(res)
		r.reporter.Report(report.NewLine(root, res))
	}

	r.stats.Finalize()
	r.logger.Info(r.stats.GetSummary())
	r.logger.Debug(r.stats.GetFileTypeBreakdown())
	if r.stats.FilesWithErrors > 0 {
		r.logger.Warn(r.stats.GetErrorSummary())
	}

	if err := r.reporter.Finish(r.stats.SummaryLine()); err != nil && runErr == nil {
		runErr = fmt.Errorf("report: %w", err)
	}
	return runErr
}
