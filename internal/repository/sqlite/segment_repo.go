package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/repository"
)

// segmentRepository implements repository.SegmentIndex for SQLite.
type segmentRepository struct {
	db *DB
}

// NewSegmentRepository creates a new SQLite segment index.
func NewSegmentRepository(db *DB) repository.SegmentIndex {
	return &segmentRepository{db: db}
}

// Record inserts every record in one transaction.
func (r *segmentRepository) Record(ctx context.Context, records []repository.SegmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO segments (owner_id, object_id, seg_offset, seg_size, checksum, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare segment insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			createdAt := rec.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			_, err := stmt.ExecContext(ctx,
				rec.Segment.OwnerID.String(),
				rec.Segment.ObjectID.String(),
				rec.Segment.Offset,
				rec.Segment.Size,
				rec.Checksum,
				createdAt.UTC().Format(time.RFC3339Nano),
			)
			if err != nil {
				return fmt.Errorf("failed to insert segment: %w", err)
			}
		}
		return nil
	})
}

// ListByOwner returns every reference of an owner, oldest first.
func (r *segmentRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]repository.SegmentRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT object_id, seg_offset, seg_size, checksum, created_at
		FROM segments
		WHERE owner_id = ?
		ORDER BY id
	`, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var records []repository.SegmentRecord
	for rows.Next() {
		var (
			objectID  string
			offset    int64
			size      int64
			checksum  string
			createdAt string
		)
		if err := rows.Scan(&objectID, &offset, &size, &checksum, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		id, err := uuid.Parse(objectID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse object id %q: %w", objectID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
		}

		records = append(records, repository.SegmentRecord{
			Segment: domain.Segment{
				ObjectID: id,
				Offset:   offset,
				Size:     size,
				OwnerID:  ownerID,
			},
			Checksum:  checksum,
			CreatedAt: ts,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate segments: %w", err)
	}

	return records, nil
}

// DeleteByObjects removes every reference into the given objects.
func (r *segmentRepository) DeleteByObjects(ctx context.Context, objectIDs []uuid.UUID) (int64, error) {
	if len(objectIDs) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(objectIDs))
	args := make([]any, len(objectIDs))
	for i, id := range objectIDs {
		placeholders[i] = "?"
		args[i] = id.String()
	}

	query := fmt.Sprintf(`DELETE FROM segments WHERE object_id IN (%s)`, strings.Join(placeholders, ", "))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete segments: %w", err)
	}

	return result.RowsAffected()
}

// CountOwners returns the number of distinct owners.
func (r *segmentRepository) CountOwners(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT owner_id) FROM segments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}
