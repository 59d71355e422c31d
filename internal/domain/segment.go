// Package domain contains the core content addressing types.
package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Segment describes one byte range inside one stored object.
// Segments are values: operations that change a range return a new Segment.
type Segment struct {
	// ObjectID identifies the stored object the range lives in.
	ObjectID uuid.UUID `json:"uuid"`

	// Offset is the start of the range within the object.
	Offset int64 `json:"offset"`

	// Size is the length of the range in bytes.
	Size int64 `json:"size"`

	// OwnerID is the logical entity (e.g. a pipeline record) the bytes belong to.
	// It only namespaces storage keys.
	OwnerID uuid.UUID `json:"did"`
}

// NewSegment creates a Segment after validating its range.
func NewSegment(objectID uuid.UUID, offset, size int64, ownerID uuid.UUID) (Segment, error) {
	if offset < 0 || size < 0 {
		return Segment{}, NewDomainError(ErrInvalidSegment,
			fmt.Sprintf("offset %d and size %d must not be negative", offset, size), objectID.String())
	}
	return Segment{
		ObjectID: objectID,
		Offset:   offset,
		Size:     size,
		OwnerID:  ownerID,
	}, nil
}

// NewObjectSegment creates the segment for a fresh write: a new object,
// starting at offset 0, with the size filled in once the write completes.
func NewObjectSegment(ownerID uuid.UUID) Segment {
	return Segment{
		ObjectID: uuid.New(),
		OwnerID:  ownerID,
	}
}

// End returns the exclusive end offset of the range within the object.
func (s Segment) End() int64 {
	return s.Offset + s.Size
}

// WithRange returns a copy of the segment covering a different range of the same object.
func (s Segment) WithRange(offset, size int64) Segment {
	s.Offset = offset
	s.Size = size
	return s
}

// ObjectName returns the storage key of the segment's object.
//
// Example:
//
//	owner:  "3f2a...-..."
//	object: "9bc1...-..."
//	result: "3f2/3f2a...-.../9bc1...-..."
func (s Segment) ObjectName() string {
	owner := s.OwnerID.String()
	return owner[:3] + "/" + owner + "/" + s.ObjectID.String()
}

// String implements fmt.Stringer.
func (s Segment) String() string {
	return fmt.Sprintf("%s[%d:%d]", s.ObjectID, s.Offset, s.End())
}

// SumSegmentSizes returns the sum of the advertised sizes of the segments.
// Overlapping ranges are counted once per segment; see DistinctCoveredBytes.
func SumSegmentSizes(segments []Segment) int64 {
	var total int64
	for _, s := range segments {
		total += s.Size
	}
	return total
}
