// Package filesystem implements storage.ObjectStore on a local directory.
package filesystem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/storage"
)

// Store keeps every object in its own file below a base directory.
// Writes go to a temporary file first and are renamed into place, so
// readers never observe a partial object.
type Store struct {
	basePath string
	tempDir  string
	logger   zerolog.Logger
}

// New creates a filesystem store rooted at basePath.
func New(basePath string, logger zerolog.Logger) (*Store, error) {
	if basePath == "" {
		return nil, errors.New("filesystem: base path is required")
	}

	tempDir := filepath.Join(basePath, ".tmp")
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("filesystem: create temp dir: %w", err)
	}

	return &Store{
		basePath: basePath,
		tempDir:  tempDir,
		logger:   logger.With().Str("store", "filesystem").Logger(),
	}, nil
}

// GetObject opens the referenced range of an object.
func (s *Store) GetObject(ctx context.Context, ref storage.ObjectReference) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Offset < 0 || ref.Size < 0 {
		return nil, fmt.Errorf("filesystem: invalid range %d+%d", ref.Offset, ref.Size)
	}

	p, err := storage.ComputePath(s.basePath, ref.Bucket, ref.Name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s/%s", storage.ErrObjectNotFound, ref.Bucket, ref.Name)
		}
		return nil, fmt.Errorf("filesystem: open object: %w", err)
	}

	size := ref.Size
	if size == 0 {
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("filesystem: stat object: %w", err)
		}
		size = max(info.Size()-ref.Offset, 0)
	}

	return &sectionReadCloser{
		SectionReader: io.NewSectionReader(f, ref.Offset, size),
		file:          f,
	}, nil
}

// PutObject writes r to the referenced object and returns the number of bytes written.
func (s *Store) PutObject(ctx context.Context, ref storage.ObjectReference, r io.Reader) (storage.ObjectReference, error) {
	if err := ctx.Err(); err != nil {
		return storage.ObjectReference{}, err
	}

	p, err := storage.ComputePath(s.basePath, ref.Bucket, ref.Name)
	if err != nil {
		return storage.ObjectReference{}, err
	}

	n, err := s.writeFile(p, r)
	if err != nil {
		return storage.ObjectReference{}, err
	}

	s.logger.Debug().
		Str("bucket", ref.Bucket).
		Str("name", ref.Name).
		Int64("size", n).
		Msg("object stored")

	return storage.ObjectReference{
		Bucket: ref.Bucket,
		Name:   ref.Name,
		Offset: 0,
		Size:   n,
	}, nil
}

// PutObjects writes every payload. It stops at the first failure.
func (s *Store) PutObjects(ctx context.Context, bucket string, writes []storage.ObjectWrite) error {
	for _, w := range writes {
		ref := storage.ObjectReference{Bucket: bucket, Name: w.Name}
		if _, err := s.PutObject(ctx, ref, bytes.NewReader(w.Data)); err != nil {
			return fmt.Errorf("filesystem: put %s: %w", w.Name, err)
		}
	}
	return nil
}

// RemoveObject deletes an object file.
func (s *Store) RemoveObject(ctx context.Context, ref storage.ObjectReference) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p, err := storage.ComputePath(s.basePath, ref.Bucket, ref.Name)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filesystem: remove object: %w", err)
	}

	// Try to clean up empty owner directories
	s.cleanupEmptyDirs(filepath.Dir(p), filepath.Join(s.basePath, ref.Bucket))

	return nil
}

// RemoveObjects deletes every named object, continuing past failures.
func (s *Store) RemoveObjects(ctx context.Context, bucket string, names []string) error {
	var errs []error
	for _, name := range names {
		if err := s.RemoveObject(ctx, storage.ObjectReference{Bucket: bucket, Name: name}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) writeFile(dest string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(s.tempDir, "object-*")
	if err != nil {
		return 0, fmt.Errorf("filesystem: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("filesystem: write object: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("filesystem: create object dir: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("filesystem: move object into place: %w", err)
	}

	return n, nil
}

// cleanupEmptyDirs removes empty directories from dir up to (not including) stop.
func (s *Store) cleanupEmptyDirs(dir, stop string) {
	for dir != stop && len(dir) > len(stop) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

type sectionReadCloser struct {
	*io.SectionReader
	file *os.File
}

func (r *sectionReadCloser) Close() error {
	return r.file.Close()
}
