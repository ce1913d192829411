package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"heavy-image-compressor/internal/batch"
	"heavy-image-compressor/internal/compressor"
	"heavy-image-compressor/internal/config"
	"heavy-image-compressor/internal/logger"
	"heavy-image-compressor/internal/metadata"
	"heavy-image-compressor/internal/report"
	"heavy-image-compressor/internal/statistics"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile     string
	targetMB    float64
	minQuality  int
	overwrite   bool
	noProgress  bool
	verbose     bool
	quiet       bool
	useExiftool bool
	folder      string
)

// rootCmd compresses every heavy image of a folder.
var rootCmd = &cobra.Command{
	Use:   "heavy-compressor <folder>",
	Short: "Shrink heavy JPEG and PNG images below a target size",
	Long: `heavy-compressor walks a folder and re-encodes every JPEG and PNG larger
than 19 MB so that it fits under the target size.

- JPEGs get the highest quality that fits, down to --min-quality
- PNGs are re-encoded losslessly at maximum compression
- EXIF orientation is baked into the pixels, EXIF and ICC are kept
- Results go next to the original as <name>_compressed.<ext>,
  or replace it with --overwrite

A folder literally named "inspect" must be given as ./inspect, otherwise
the inspect subcommand runs.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		folder = args[0]
		return runCompress(cmd, folder)
	},
}

// inspectCmd shows what the compressor sees in a single file.
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show format, size and orientation of an image",
	Long: `Shows how a single image would be handled: its format, dimensions,
size, EXIF orientation and whether it is heavy enough to be re-encoded.
With --exiftool the exiftool binary is asked for the same fields.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInspect(args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "log debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "only log errors")

	rootCmd.Flags().Float64Var(&targetMB, "target-mb", compressor.DefaultTargetMB, "target size in MB")
	rootCmd.Flags().IntVar(&minQuality, "min-quality", compressor.DefaultMinQuality, "lowest JPEG quality to try")
	rootCmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace originals instead of writing _compressed files")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "print plain lines without a progress bar")

	inspectCmd.Flags().BoolVar(&useExiftool, "exiftool", false, "also read fields with the exiftool binary")

	rootCmd.AddCommand(inspectCmd)
}

// runCompress executes the compression run.
func runCompress(cmd *cobra.Command, root string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg, os.Stderr)

	params := compressor.DefaultParams()
	params.TargetBytes = compressor.TargetBytes(cfg.TargetMB)
	params.MinQuality = cfg.MinQuality
	params.Overwrite = cfg.Overwrite
	comp := compressor.NewDefaultCompressor(params, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(log, statistics.NewStatistics(), comp, newReporter(ctx, cfg))
	return runner.Run(ctx, root)
}

// runInspect prints what is known about a single file.
func runInspect(path string) error {
	info, err := metadata.Inspect(path)
	if err != nil {
		return err
	}

	fmt.Printf("File:        %s\n", info.Path)
	fmt.Printf("Format:      %s\n", info.Format)
	fmt.Printf("Dimensions:  %dx%d\n", info.Width, info.Height)
	fmt.Printf("Size:        %.2f MB\n", float64(info.Size)/compressor.MiB)
	fmt.Printf("Orientation: %d (%s)\n", int(info.Orientation), info.Orientation)
	fmt.Printf("EXIF:        %t\n", info.HasExif)
	fmt.Printf("ICC profile: %t\n", info.HasICC)
	fmt.Printf("Processed:   %t\n", info.Size > compressor.SkipThreshold)

	if !useExiftool {
		return nil
	}

	fields, err := metadata.ExiftoolFields(path, "Orientation", "ProfileDescription", "Software")
	if err != nil {
		return fmt.Errorf("exiftool: %w", err)
	}
	fmt.Println("\nexiftool:")
	for _, key := range []string{"Orientation", "ProfileDescription", "Software"} {
		if v, ok := fields[key]; ok {
			fmt.Printf("  %s: %s\n", key, v)
		}
	}
	return nil
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("target-mb") {
		cfg.TargetMB = targetMB
	}
	if flags.Changed("min-quality") {
		cfg.MinQuality = minQuality
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = overwrite
	}
	if noProgress {
		cfg.ShowProgress = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger. When the configured sinks
// cannot be opened the problem is reported on warn and logging is disabled.
func setupLogger(cfg *config.Config, warn io.Writer) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    cfg.Logging.Console,
	}

	if verbose {
		loggerCfg.Level = "debug"
		loggerCfg.Console = true
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		fmt.Fprintf(warn, "LOGGER SETUP ERROR: %v (logging disabled)\n", err)
		log = logger.Discard()
	}

	return log
}

// newReporter picks the progress bar on a terminal and plain lines otherwise.
func newReporter(ctx context.Context, cfg *config.Config) report.Reporter {
	fd := os.Stdout.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	if cfg.ShowProgress && tty {
		return report.NewProgressReporter(ctx, os.Stdout)
	}
	return report.NewPlainReporter(os.Stdout)
}

// exitCode maps the error returned by a command to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

func main() {
	err := rootCmd.Execute()
	code := exitCode(err)
	if code == 0 {
		return
	}

	fatal := report.NewStyles(lipgloss.NewRenderer(os.Stderr)).Fatal
	switch {
	case errors.Is(err, compressor.ErrNotFound):
		fmt.Fprintln(os.Stderr, fatal.Render("Folder not found: "+folder))
	case code == 130:
		fmt.Fprintln(os.Stderr, "Interrupted")
	default:
		fmt.Fprintln(os.Stderr, fatal.Render("Error: "+err.Error()))
	}
	os.Exit(code)
}
