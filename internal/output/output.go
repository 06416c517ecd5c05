// Package output writes encoded documents to their destination.
package output

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshseq/internal/errs"
	"github.com/Faultbox/meshseq/internal/gltfbuild"
	"github.com/Faultbox/meshseq/internal/logger"
)

// Sink receives the files of one encoded document.
type Sink interface {
	// Name is the output name to encode against. Companion files are
	// named relative to it.
	Name() string
	// Write stores all files or none of them.
	Write(ctx context.Context, files []gltfbuild.File) error
}

// Options configure remote sinks.
type Options struct {
	S3Region   string
	S3Endpoint string
}

// Open returns the sink for target: an S3 object for s3://bucket/key,
// a local file otherwise.
func Open(ctx context.Context, target string, opts Options) (Sink, error) {
	if strings.HasPrefix(target, s3Scheme) {
		return NewS3Sink(ctx, target, opts)
	}
	return &FileSink{Path: target}, nil
}

// FileSink writes to the local filesystem through temporary files that
// are renamed into place once every file is written.
type FileSink struct {
	Path string
}

// Name implements Sink.
func (s *FileSink) Name() string {
	return s.Path
}

// Write implements Sink. Companion files are renamed before the document
// so a document never points at a buffer that is not in place yet.
func (s *FileSink) Write(ctx context.Context, files []gltfbuild.File) (err error) {
	var temps, placed []string
	defer func() {
		if err == nil {
			return
		}
		for _, name := range append(temps, placed...) {
			if rmErr := os.Remove(name); rmErr != nil && !os.IsNotExist(rmErr) {
				err = multierr.Append(err, rmErr)
			}
		}
	}()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		tmp, err := writeTemp(f)
		if err != nil {
			return &errs.IOError{Op: "write output", Path: f.Name, Err: err}
		}
		temps = append(temps, tmp)
	}
	for i := len(files) - 1; i >= 0; i-- {
		f := files[i]
		if err := os.Rename(temps[i], f.Name); err != nil {
			return &errs.IOError{Op: "write output", Path: f.Name, Err: err}
		}
		placed = append(placed, f.Name)
		logger.Debug("wrote output file", zap.String("path", f.Name), zap.Int("bytes", len(f.Data)))
	}
	return nil
}

func writeTemp(f gltfbuild.File) (name string, err error) {
	dir := filepath.Dir(f.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Name)+".*")
	if err != nil {
		return "", err
	}
	defer func() {
		err = multierr.Append(err, tmp.Close())
		if err != nil {
			err = multierr.Append(err, os.Remove(tmp.Name()))
		}
	}()
	if _, err := tmp.Write(f.Data); err != nil {
		return "", err
	}
	if err := tmp.Chmod(0644); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}
