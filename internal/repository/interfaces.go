// Package repository defines data access interfaces for the content store.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/contentstore/internal/domain"
)

// =============================================================================
// Segment Index
// =============================================================================

// SegmentRecord is one indexed reference to a stored byte range.
type SegmentRecord struct {
	// Segment is the referenced range.
	Segment domain.Segment

	// Checksum is the hex BLAKE2b-256 digest of the bytes when they were
	// written. Empty for references derived from existing content.
	Checksum string

	// CreatedAt is when the reference was recorded.
	CreatedAt time.Time
}

// SegmentIndex records which stored ranges each owner references.
// It backs storage accounting; the object store stays the source of truth
// for the bytes themselves.
type SegmentIndex interface {
	// Record stores references. Recording the same range twice keeps both rows.
	Record(ctx context.Context, records []SegmentRecord) error

	// ListByOwner returns every reference of an owner, oldest first.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]SegmentRecord, error)

	// DeleteByObjects removes every reference into the given objects and
	// returns the number of rows removed.
	DeleteByObjects(ctx context.Context, objectIDs []uuid.UUID) (int64, error)

	// CountOwners returns the number of owners with at least one reference.
	CountOwners(ctx context.Context) (int64, error)
}
