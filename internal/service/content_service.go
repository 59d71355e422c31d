// Package service provides the content storage services.
package service

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/metrics"
	"github.com/prn-tf/contentstore/internal/pkg/crypto"
	"github.com/prn-tf/contentstore/internal/repository"
	"github.com/prn-tf/contentstore/internal/storage"
)

// DefaultBucket is the bucket content objects are written to.
const DefaultBucket = "storage"

// ContentStorageConfig holds configuration for the ContentStorageService.
type ContentStorageConfig struct {
	// Bucket is the object store bucket for every content object.
	Bucket string
}

// SaveManyContent is one payload of a SaveMany call.
type SaveManyContent struct {
	Name      string
	MediaType string
	Data      []byte
}

// ContentStorageService turns byte streams into Content and back.
// It is safe for concurrent use.
type ContentStorageService struct {
	store   storage.ObjectStore
	index   repository.SegmentIndex
	metrics *metrics.Metrics
	logger  zerolog.Logger
	bucket  string
}

// NewContentStorageService creates a new ContentStorageService.
// index and m may be nil.
func NewContentStorageService(
	store storage.ObjectStore,
	index repository.SegmentIndex,
	m *metrics.Metrics,
	logger zerolog.Logger,
	config ContentStorageConfig,
) *ContentStorageService {
	bucket := config.Bucket
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &ContentStorageService{
		store:   store,
		index:   index,
		metrics: m,
		logger:  logger.With().Str("service", "content").Logger(),
		bucket:  bucket,
	}
}

// Bucket returns the bucket content objects are written to.
func (s *ContentStorageService) Bucket() string {
	return s.bucket
}

// Load returns the logical bytes of content: the concatenation of every
// segment's range in segment order. The first segment is opened
// immediately; every later one only once the previous is exhausted.
// Zero-size segments are skipped; content without bytes yields an empty
// stream without touching the store.
func (s *ContentStorageService) Load(ctx context.Context, content domain.Content) (io.ReadCloser, error) {
	if s.metrics != nil {
		s.metrics.Loads.Inc()
	}

	// a zero Size on a store reference means "to the end of the object"
	segments := make([]domain.Segment, 0, len(content.Segments))
	for _, seg := range content.Segments {
		if seg.Size > 0 {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}

	r := &segmentReader{
		ctx:      ctx,
		svc:      s,
		segments: segments,
	}
	if err := r.next(); err != nil {
		return nil, err
	}

	s.logger.Debug().
		Str("content", content.Name).
		Int("segments", len(content.Segments)).
		Int64("size", content.Size()).
		Msg("loading content")

	return r, nil
}

// openSegment opens the stored range of one segment.
func (s *ContentStorageService) openSegment(ctx context.Context, seg domain.Segment) (io.ReadCloser, error) {
	rc, err := s.store.GetObject(ctx, storage.ObjectReference{
		Bucket: s.bucket,
		Name:   seg.ObjectName(),
		Offset: seg.Offset,
		Size:   seg.Size,
	})
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, domain.NewDomainError(domain.ErrObjectNotFound, "segment object is missing", seg.ObjectName())
		}
		s.logger.Error().Err(err).Str("object", seg.ObjectName()).Msg("failed to open segment")
		return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return rc, nil
}

// Save writes everything read from r as one new object owned by ownerID.
// Empty input produces an empty Content and no object.
func (s *ContentStorageService) Save(ctx context.Context, ownerID uuid.UUID, r io.Reader, name, mediaType string) (domain.Content, error) {
	br := bufio.NewReader(r)
	if _, err := br.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewContent(name, mediaType), nil
		}
		return domain.Content{}, fmt.Errorf("read content %q: %w", name, err)
	}

	segment := domain.NewObjectSegment(ownerID)
	hr := crypto.NewHashReader(br)

	ref, err := s.store.PutObject(ctx, storage.ObjectReference{
		Bucket: s.bucket,
		Name:   segment.ObjectName(),
	}, hr)
	if err != nil {
		s.logger.Error().Err(err).Str("object", segment.ObjectName()).Msg("failed to store content")
		return domain.Content{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	segment.Size = ref.Size

	s.recordSegments(ctx, []repository.SegmentRecord{{Segment: segment, Checksum: hr.Sum()}})
	if s.metrics != nil {
		s.metrics.RecordSave(metrics.OpSave, segment.Size)
	}

	s.logger.Debug().
		Str("content", name).
		Str("object", segment.ObjectName()).
		Int64("size", segment.Size).
		Msg("content saved")

	return domain.NewContent(name, mediaType, segment), nil
}

// SaveBytes saves an in-memory payload.
func (s *ContentStorageService) SaveBytes(ctx context.Context, ownerID uuid.UUID, data []byte, name, mediaType string) (domain.Content, error) {
	return s.Save(ctx, ownerID, bytes.NewReader(data), name, mediaType)
}

// SaveMany writes several payloads with a single bulk write. The result
// has one Content per input, in input order; empty payloads yield empty
// Contents and are not written.
func (s *ContentStorageService) SaveMany(ctx context.Context, ownerID uuid.UUID, items []SaveManyContent) ([]domain.Content, error) {
	contents := make([]domain.Content, len(items))
	writes := make([]storage.ObjectWrite, 0, len(items))
	records := make([]repository.SegmentRecord, 0, len(items))
	var total int64

	for i, item := range items {
		if len(item.Data) == 0 {
			contents[i] = domain.NewContent(item.Name, item.MediaType)
			continue
		}

		segment := domain.NewObjectSegment(ownerID)
		segment.Size = int64(len(item.Data))
		total += segment.Size

		writes = append(writes, storage.ObjectWrite{Name: segment.ObjectName(), Data: item.Data})
		records = append(records, repository.SegmentRecord{Segment: segment, Checksum: crypto.Checksum(item.Data)})
		contents[i] = domain.NewContent(item.Name, item.MediaType, segment)
	}

	if len(writes) > 0 {
		if err := s.store.PutObjects(ctx, s.bucket, writes); err != nil {
			s.logger.Error().Err(err).Int("objects", len(writes)).Msg("failed to store content batch")
			return nil, fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		s.recordSegments(ctx, records)
	}

	if s.metrics != nil {
		s.metrics.RecordSave(metrics.OpSaveMany, total)
	}

	s.logger.Debug().
		Int("contents", len(items)).
		Int("objects", len(writes)).
		Int64("size", total).
		Msg("content batch saved")

	return contents, nil
}

// Delete removes every object referenced by content.
func (s *ContentStorageService) Delete(ctx context.Context, content domain.Content) error {
	return s.DeleteAll(ctx, content.Segments)
}

// DeleteAll removes every distinct object referenced by segments.
// Other contents aliasing the same objects become unreadable.
func (s *ContentStorageService) DeleteAll(ctx context.Context, segments []domain.Segment) error {
	names, ids := distinctObjects(segments)
	if len(names) == 0 {
		return nil
	}

	if err := s.store.RemoveObjects(ctx, s.bucket, names); err != nil {
		s.logger.Warn().Err(err).Int("objects", len(names)).Msg("failed to remove objects")
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	if s.index != nil {
		if _, err := s.index.DeleteByObjects(ctx, ids); err != nil {
			s.logger.Warn().Err(err).Int("objects", len(ids)).Msg("failed to drop removed objects from segment index")
		}
	}
	if s.metrics != nil {
		s.metrics.ObjectsDeleted.Add(float64(len(names)))
	}

	s.logger.Debug().Int("objects", len(names)).Msg("objects removed")
	return nil
}

// recordSegments indexes freshly written segments. The object store is the
// source of truth, so index failures are logged and not returned.
func (s *ContentStorageService) recordSegments(ctx context.Context, records []repository.SegmentRecord) {
	if s.index == nil || len(records) == 0 {
		return
	}
	now := time.Now().UTC()
	for i := range records {
		records[i].CreatedAt = now
	}
	if err := s.index.Record(ctx, records); err != nil {
		s.logger.Warn().Err(err).Int("segments", len(records)).Msg("failed to index saved segments")
	}
}

// distinctObjects returns the object names and ids referenced by segments,
// in first-seen order.
func distinctObjects(segments []domain.Segment) ([]string, []uuid.UUID) {
	seen := make(map[uuid.UUID]struct{}, len(segments))
	names := make([]string, 0, len(segments))
	ids := make([]uuid.UUID, 0, len(segments))
	for _, seg := range segments {
		if _, ok := seen[seg.ObjectID]; ok {
			continue
		}
		seen[seg.ObjectID] = struct{}{}
		names = append(names, seg.ObjectName())
		ids = append(ids, seg.ObjectID)
	}
	return names, ids
}

// segmentReader streams the ranges of a segment list one after another.
// Every segment must yield exactly its Size bytes.
type segmentReader struct {
	ctx       context.Context
	svc       *ContentStorageService
	segments  []domain.Segment
	pos       int
	current   io.ReadCloser
	limited   io.Reader
	remaining int64
}

// next closes the current range and opens the following one.
func (r *segmentReader) next() error {
	if r.current != nil {
		_ = r.current.Close()
		r.current = nil
		r.limited = nil
	}
	if r.pos >= len(r.segments) {
		return io.EOF
	}
	seg := r.segments[r.pos]
	rc, err := r.svc.openSegment(r.ctx, seg)
	if err != nil {
		return err
	}
	r.pos++
	r.current = rc
	r.limited = io.LimitReader(rc, seg.Size)
	r.remaining = seg.Size
	return nil
}

func (r *segmentReader) Read(p []byte) (int, error) {
	for {
		if r.current == nil {
			return 0, io.EOF
		}
		n, err := r.limited.Read(p)
		r.remaining -= int64(n)
		if errors.Is(err, io.EOF) {
			if r.remaining > 0 {
				seg := r.segments[r.pos-1]
				r.svc.logger.Error().
					Str("object", seg.ObjectName()).
					Int64("missing", r.remaining).
					Msg("stored object is shorter than its segment")
				return n, fmt.Errorf("%w: segment %s of %s: %w", domain.ErrStorage, seg, seg.ObjectName(), io.ErrUnexpectedEOF)
			}
			if nextErr := r.next(); nextErr != nil && !errors.Is(nextErr, io.EOF) {
				return n, nextErr
			}
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
}

func (r *segmentReader) Close() error {
	if r.current == nil {
		return nil
	}
	err := r.current.Close()
	r.current = nil
	r.limited = nil
	r.pos = len(r.segments)
	return err
}
