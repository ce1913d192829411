package compressor

import (
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"heavy-image-compressor/internal/logger"
)

// Scan walks root in lexical order and yields every regular file with a
// .jpg, .jpeg or .png extension. The sequence is lazy and can be ranged over
// once per call.
func (c *DefaultCompressor) Scan(root string) (iter.Seq[ImageTask], error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrNotFound, root)
	}

	return func(yield func(ImageTask) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.WithFile(c.logger, path).WithError(err).Warn("Error accessing path")
				return nil
			}
			if d.IsDir() {
				return nil
			}

			format := FormatFromExt(filepath.Ext(path))
			if format == FormatUnsupported {
				return nil
			}

			// Stat rather than d.Info so that symlinks to files count.
			fi, err := os.Stat(path)
			if err != nil {
				logger.WithFile(c.logger, path).WithError(err).Warn("Error accessing path")
				return nil
			}
			if !fi.Mode().IsRegular() {
				return nil
			}

			if !yield(ImageTask{Path: path, Size: fi.Size(), Format: format}) {
				return filepath.SkipAll
			}
			return nil
		})
	}, nil
}
