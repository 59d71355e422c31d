package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/repository"
)

// segmentRepository implements repository.SegmentIndex.
type segmentRepository struct {
	db *DB
}

// NewSegmentRepository creates a new PostgreSQL segment index.
func NewSegmentRepository(db *DB) repository.SegmentIndex {
	return &segmentRepository{db: db}
}

// Record inserts every record with one batch inside a transaction.
func (r *segmentRepository) Record(ctx context.Context, records []repository.SegmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO segments (owner_id, object_id, seg_offset, seg_size, checksum, created_at)
		VALUES ($1::uuid, $2::uuid, $3, $4, $5, $6)
	`

	return r.db.WithTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, rec := range records {
			createdAt := rec.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now()
			}
			batch.Queue(query,
				rec.Segment.OwnerID.String(),
				rec.Segment.ObjectID.String(),
				rec.Segment.Offset,
				rec.Segment.Size,
				rec.Checksum,
				createdAt.UTC(),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert segments: %w", err)
		}
		return nil
	})
}

// ListByOwner returns every reference of an owner, oldest first.
func (r *segmentRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]repository.SegmentRecord, error) {
	query := `
		SELECT object_id::text, seg_offset, seg_size, checksum, created_at
		FROM segments
		WHERE owner_id = $1::uuid
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, ownerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	defer rows.Close()

	var records []repository.SegmentRecord
	for rows.Next() {
		var (
			objectID string
			rec      repository.SegmentRecord
		)
		if err := rows.Scan(&objectID, &rec.Segment.Offset, &rec.Segment.Size, &rec.Checksum, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan segment: %w", err)
		}

		id, err := uuid.Parse(objectID)
		if err != nil {
			return nil, fmt.Errorf("failed to parse object id %q: %w", objectID, err)
		}
		rec.Segment = domain.Segment{
			ObjectID: id,
			Offset:   rec.Segment.Offset,
			Size:     rec.Segment.Size,
			OwnerID:  ownerID,
		}
		records = append(records, rec)
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

	ids := make([]string, len(objectIDs))
	for i, id := range objectIDs {
		ids[i] = id.String()
	}

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM segments WHERE object_id = ANY($1::uuid[])`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete segments: %w", err)
	}

	return tag.RowsAffected(), nil
}

// CountOwners returns the number of distinct owners.
func (r *segmentRepository) CountOwners(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(DISTINCT owner_id) FROM segments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return count, nil
}
