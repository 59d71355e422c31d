package domain

import (
	"fmt"
)

// Content is a named, media-typed view over an ordered list of segments.
// Segment order defines the logical byte order of the payload. A Content
// owns no bytes; several Content values may alias the same stored ranges.
//
// Content values are treated as immutable: every operation returns a new
// Content with its own segment slice.
type Content struct {
	Name      string    `json:"name"`
	MediaType string    `json:"mediaType"`
	Segments  []Segment `json:"segments"`
}

// NewContent creates a Content over a copy of the given segments.
// Zero-size segments contribute nothing and are dropped.
func NewContent(name, mediaType string, segments ...Segment) Content {
	return Content{
		Name:      name,
		MediaType: mediaType,
		Segments:  compactSegments(segments),
	}
}

// Size returns the logical size of the content.
func (c Content) Size() int64 {
	return SumSegmentSizes(c.Segments)
}

// IsEmpty returns true if the content has no bytes.
func (c Content) IsEmpty() bool {
	return c.Size() == 0
}

// Subcontent returns the logical range [start, start+length) of the content
// under the same name and media type.
func (c Content) Subcontent(start, length int64) (Content, error) {
	return c.SubcontentNamed(start, length, c.Name, c.MediaType)
}

// SubcontentNamed returns the logical range [start, start+length) of the
// content under a new name and media type.
func (c Content) SubcontentNamed(start, length int64, name, mediaType string) (Content, error) {
	segments, err := c.SubreferenceSegments(start, length)
	if err != nil {
		return Content{}, err
	}
	return Content{Name: name, MediaType: mediaType, Segments: segments}, nil
}

// SubreferenceSegments returns the segments that cover the logical range
// [start, start+length) of the content. Segments that partially overlap the
// range are truncated, segments outside of it are omitted. No bytes are copied.
func (c Content) SubreferenceSegments(start, length int64) ([]Segment, error) {
	if start < 0 {
		return nil, NewDomainError(ErrOutOfRange, fmt.Sprintf("offset must not be negative, got %d", start), c.Name)
	}
	if length < 0 {
		return nil, NewDomainError(ErrOutOfRange, fmt.Sprintf("size must not be negative, got %d", length), c.Name)
	}
	total := c.Size()
	if start > total-length {
		return nil, NewDomainError(ErrOutOfRange,
			fmt.Sprintf("size + offset (%d + %d) exceeds total content size of %d", length, start, total), c.Name)
	}

	if length == 0 {
		return []Segment{}, nil
	}

	result := make([]Segment, 0, len(c.Segments))
	end := start + length

	// cursor is the logical offset of the current segment's first byte
	var cursor int64
	for _, segment := range c.Segments {
		segStart := cursor
		segEnd := cursor + segment.Size
		cursor = segEnd

		if segEnd <= start {
			continue
		}
		if segStart >= end {
			break
		}

		from := max(start, segStart)
		to := min(end, segEnd)
		if to == from {
			continue
		}

		result = append(result, segment.WithRange(segment.Offset+(from-segStart), to-from))
	}

	return result, nil
}

// Append returns a new Content with other's segments after the receiver's.
func (c Content) Append(other Content) Content {
	segments := make([]Segment, 0, len(c.Segments)+len(other.Segments))
	segments = append(segments, c.Segments...)
	segments = append(segments, other.Segments...)
	return Content{Name: c.Name, MediaType: c.MediaType, Segments: segments}
}

// Copy returns a Content with an independent segment slice.
func (c Content) Copy() Content {
	segments := make([]Segment, len(c.Segments))
	copy(segments, c.Segments)
	return Content{Name: c.Name, MediaType: c.MediaType, Segments: segments}
}

// Equal reports whether two contents have the same name, media type and
// segment sequence.
func (c Content) Equal(other Content) bool {
	if c.Name != other.Name || c.MediaType != other.MediaType {
		return false
	}
	if len(c.Segments) != len(other.Segments) {
		return false
	}
	for i := range c.Segments {
		if c.Segments[i] != other.Segments[i] {
			return false
		}
	}
	return true
}

// ObjectNames returns the distinct object names referenced by the content, in
// first-seen order.
func (c Content) ObjectNames() []string {
	seen := make(map[string]struct{}, len(c.Segments))
	names := make([]string, 0, len(c.Segments))
	for _, s := range c.Segments {
		name := s.ObjectName()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// compactSegments copies segments, dropping zero-size entries.
func compactSegments(segments []Segment) []Segment {
	result := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if s.Size == 0 {
			continue
		}
		result = append(result, s)
	}
	return result
}
