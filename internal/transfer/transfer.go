// Package transfer implements the file-copy service used for publish side
// effects: single files or whole directory trees, with overwrite handling
// for read-only destinations and glob-based ignore patterns.
package transfer

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"
)

// DefaultBufferSize is used when Options.BufferSize is zero. Engine calls
// pass 25 MiB, matching the large-media workloads this service moves.
const DefaultBufferSize = 16 * 1024

// treeCopyWorkers bounds concurrent per-file copies inside one tree copy.
const treeCopyWorkers = 4

// Options control a single copy operation.
type Options struct {
	// IgnorePatterns are glob patterns matched against base names; matching
	// files and directories are skipped during tree copies.
	IgnorePatterns []string
	// Overwrite allows replacing an existing destination. A read-only
	// destination is made writable for the copy and its mode restored.
	Overwrite bool
	// BufferSize is the per-file I/O buffer size.
	BufferSize int
}

// Service copies files and directory trees. The zero value is not usable;
// construct with New.
type Service struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Copy copies src (file or directory) to dst. For directory sources dst is
// the tree root; for file sources dst may be the target file or an existing
// directory to copy into.
func (s *Service) Copy(ctx context.Context, src, dst string, opts Options) error {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	s.logger.Info("copy", "source", src, "destination", dst)

	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("source path does not exist: %s", src)
		}
		return fmt.Errorf("stat source: %w", err)
	}

	if info.IsDir() {
		return s.copyTree(ctx, src, dst, opts)
	}
	return s.copyFile(ctx, src, dst, opts)
}

// Delete removes a file or a directory tree.
func (s *Service) Delete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("delete: path does not exist", "path", path)
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

func (s *Service) copyFile(ctx context.Context, src, dst string, opts Options) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// A file copied to an existing directory, or to a path with no
	// extension, lands inside that directory under its own name.
	if isDirTarget(dst) {
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return fmt.Errorf("create destination directory: %w", err)
		}
		dst = filepath.Join(dst, filepath.Base(src))
	} else if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination directory: %w", err)
	}

	if dstInfo, err := os.Stat(dst); err == nil {
		if !opts.Overwrite {
			return fmt.Errorf("destination already exists and overwrite is disabled: %s", dst)
		}
		if restore, err := makeWritable(dst, dstInfo.Mode()); err != nil {
			return fmt.Errorf("make destination writable: %w", err)
		} else if restore != nil {
			defer restore()
		}
	}

	return writeFileBuffered(src, dst, opts.BufferSize)
}

func (s *Service) copyTree(ctx context.Context, src, dst string, opts Options) error {
	if dstInfo, err := os.Stat(dst); err == nil {
		if !dstInfo.IsDir() {
			return fmt.Errorf("source is a directory but destination %s is a file", dst)
		}
		if !opts.Overwrite {
			return fmt.Errorf("destination already exists and overwrite is disabled: %s", dst)
		}
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove existing destination: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(treeCopyWorkers)

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if ignored(filepath.Base(path), opts.IgnorePatterns) && path != src {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			// Directories are created in walk order so file copies never
			// race their parent.
			return os.MkdirAll(target, 0o755)
		}
		g.Go(func() error {
			return writeFileBuffered(path, target, opts.BufferSize)
		})
		return nil
	})
	if err != nil {
		// Drain outstanding copies before reporting the walk failure.
		_ = g.Wait()
		return fmt.Errorf("copy tree %s: %w", src, err)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("copy tree %s: %w", src, err)
	}
	return nil
}

func writeFileBuffered(src, dst string, bufSize int) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	buf := make([]byte, bufSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	// Preserve the source mode, copy2-style.
	if info, err := os.Stat(src); err == nil {
		_ = os.Chmod(dst, info.Mode())
	}
	return nil
}

// makeWritable lifts the write bit on a read-only destination and returns a
// restore func, or nil when the mode was already writable.
func makeWritable(path string, mode os.FileMode) (func(), error) {
	if mode.Perm()&0o200 != 0 {
		return nil, nil
	}
	if err := os.Chmod(path, mode.Perm()|0o200); err != nil {
		return nil, err
	}
	return func() { _ = os.Chmod(path, mode.Perm()) }, nil
}

func ignored(base string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
	}
	return false
}

func isDirTarget(dst string) bool {
	if info, err := os.Stat(dst); err == nil {
		return info.IsDir()
	}
	return filepath.Ext(dst) == ""
}
