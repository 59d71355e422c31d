// Package splitter divides stored content into smaller child contents by
// reference. Children are expressed as segments of the parent's stored
// objects; no bytes are copied or written.
package splitter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/metrics"
)

// ContentLoader opens the byte stream of a content.
type ContentLoader interface {
	Load(ctx context.Context, content domain.Content) (io.ReadCloser, error)
}

// Splitter splits content on line boundaries under row and size limits.
type Splitter struct {
	loader  ContentLoader
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// New creates a Splitter. m may be nil.
func New(loader ContentLoader, m *metrics.Metrics, logger zerolog.Logger) *Splitter {
	return &Splitter{
		loader:  loader,
		metrics: m,
		logger:  logger.With().Str("service", "splitter").Logger(),
	}
}

// SplitContent loads content and splits it according to params.
func (s *Splitter) SplitContent(ctx context.Context, content domain.Content, params Params) ([]domain.Content, error) {
	start := time.Now()

	r, err := s.loader.Load(ctx, content)
	if err != nil {
		s.recordError(err)
		return nil, fmt.Errorf("load %q: %w", content.Name, err)
	}
	defer r.Close()

	children, err := SplitReader(content, r, params)
	if err != nil {
		s.recordError(err)
		s.logger.Debug().
			Err(err).
			Str("content", content.Name).
			Stringer("params", params).
			Msg("split failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSplit(time.Since(start).Seconds(), len(children))
	}

	s.logger.Debug().
		Str("content", content.Name).
		Int64("size", content.Size()).
		Int("children", len(children)).
		Stringer("params", params).
		Msg("content split")

	return children, nil
}

func (s *Splitter) recordError(err error) {
	if s.metrics != nil {
		s.metrics.RecordSplitError(ErrorKind(err))
	}
}

// ErrorKind returns a short label for a split failure.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrLineOverflow):
		return "line_overflow"
	case errors.Is(err, domain.ErrSegmentOverflow):
		return "segment_overflow"
	case errors.Is(err, domain.ErrHeaderNotFound):
		return "header_not_found"
	case errors.Is(err, domain.ErrObjectNotFound):
		return "object_not_found"
	default:
		return "io"
	}
}

// SplitReader splits content whose bytes are read from r. r must yield
// exactly the logical bytes of content.
//
// Every child is at most params.MaxSize() bytes and holds at most
// params.MaxRows() data rows. With headers enabled, the first child is the
// contiguous range starting at offset 0 (leading comments and header
// included) and later children start with a reference to the header line.
func SplitReader(content domain.Content, r io.Reader, params Params) ([]domain.Content, error) {
	maxSize := params.MaxSize()
	reader := NewCountingReader(r, maxSize)

	var (
		header     []domain.Segment
		headerSize int64
	)
	if params.IncludeHeaders() {
		var err error
		header, headerSize, err = readHeader(content, reader, params)
		if err != nil {
			return nil, err
		}
		reader.SetMaxLineSize(maxSize - headerSize)
	}

	b := &childBuilder{
		source: content,
		header: header,
	}

	// chunkStart is the first byte of the open child. The first child starts
	// at 0 and already accounts for comments and header.
	var (
		chunkStart int64
		rowsEnd    int64
		rows       int64
	)
	for {
		_, err := reader.SkipLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		lineEnd := reader.BytesRead()

		size := lineEnd - chunkStart
		if b.count() > 0 {
			size += headerSize
		}

		if size > maxSize || rows == params.MaxRows() {
			if rows == 0 {
				return nil, domain.NewDomainError(domain.ErrSegmentOverflow,
					fmt.Sprintf("first row ends at offset %d, limit is %d bytes", lineEnd, maxSize), content.Name)
			}
			if err := b.add(chunkStart, rowsEnd); err != nil {
				return nil, err
			}
			chunkStart = rowsEnd
			rows = 0
		}

		rowsEnd = lineEnd
		rows++
	}

	if reader.BytesRead() > chunkStart {
		if err := b.add(chunkStart, reader.BytesRead()); err != nil {
			return nil, err
		}
	}

	return b.children, nil
}

// readHeader skips comment lines and returns the segments and size of the
// first other line. The reader is positioned just past the header.
func readHeader(content domain.Content, reader *CountingReader, params Params) ([]domain.Segment, int64, error) {
	prefix := []byte(params.CommentChars())
	for {
		offset := reader.BytesRead()
		line, err := reader.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil, 0, domain.NewDomainError(domain.ErrHeaderNotFound, "no non-comment line", content.Name)
		}
		if err != nil {
			return nil, 0, err
		}
		if params.HasCommentChars() && bytes.HasPrefix(line, prefix) {
			continue
		}

		headerEnd := reader.BytesRead()
		if headerEnd > params.MaxSize() {
			return nil, 0, domain.NewDomainError(domain.ErrSegmentOverflow,
				fmt.Sprintf("header ends at offset %d, limit is %d bytes", headerEnd, params.MaxSize()), content.Name)
		}

		size := headerEnd - offset
		segments, err := content.SubreferenceSegments(offset, size)
		if err != nil {
			return nil, 0, err
		}
		return segments, size, nil
	}
}

// childBuilder accumulates the children of one split.
type childBuilder struct {
	source   domain.Content
	header   []domain.Segment
	children []domain.Content
}

func (b *childBuilder) count() int {
	return len(b.children)
}

// add appends the child covering [start, end) of the source. Every child but
// the first is prefixed with the header segments.
func (b *childBuilder) add(start, end int64) error {
	rows, err := b.source.SubreferenceSegments(start, end-start)
	if err != nil {
		return err
	}

	var segments []domain.Segment
	if b.count() > 0 {
		segments = make([]domain.Segment, 0, len(b.header)+len(rows))
		segments = append(segments, b.header...)
	}
	segments = append(segments, rows...)

	b.children = append(b.children, domain.Content{
		Name:      ChildName(b.source.Name, b.count()),
		MediaType: b.source.MediaType,
		Segments:  segments,
	})
	return nil
}

// ChildName returns the name of the index-th child of a content named name.
// The index is inserted before the extension: "data.csv" becomes "data.0.csv".
func ChildName(name string, index int) string {
	id := strconv.Itoa(index)
	if name == "" {
		return id
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if base == "" {
		// dotfile such as ".env"
		return name + "." + id
	}
	return base + "." + id + ext
}
