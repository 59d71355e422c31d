package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/repository"
)

// Usage summarizes the stored bytes an owner references.
type Usage struct {
	OwnerID uuid.UUID `json:"ownerId"`

	// Segments is the number of indexed references.
	Segments int `json:"segments"`

	// Referenced is the sum of every reference's size. Aliased ranges are
	// counted once per reference.
	Referenced int64 `json:"referenced"`

	// Distinct is the number of stored bytes covered by at least one reference.
	Distinct int64 `json:"distinct"`
}

// UsageService answers storage accounting questions from the segment index.
type UsageService struct {
	index  repository.SegmentIndex
	logger zerolog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(index repository.SegmentIndex, logger zerolog.Logger) *UsageService {
	return &UsageService{
		index:  index,
		logger: logger.With().Str("service", "usage").Logger(),
	}
}

// OwnerUsage returns the usage of one owner. Owners without references
// have zero usage.
func (s *UsageService) OwnerUsage(ctx context.Context, ownerID uuid.UUID) (Usage, error) {
	records, err := s.index.ListByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", ownerID.String()).Msg("failed to list owner segments")
		return Usage{}, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}

	segments := make([]domain.Segment, len(records))
	for i, r := range records {
		segments[i] = r.Segment
	}

	return Usage{
		OwnerID:    ownerID,
		Segments:   len(segments),
		Referenced: domain.SumSegmentSizes(segments),
		Distinct:   domain.DistinctCoveredBytes(segments),
	}, nil
}

// RecordContent indexes the segments of content derived from already stored
// bytes, such as split children.
func (s *UsageService) RecordContent(ctx context.Context, contents ...domain.Content) error {
	now := time.Now().UTC()
	var records []repository.SegmentRecord
	for _, c := range contents {
		for _, seg := range c.Segments {
			records = append(records, repository.SegmentRecord{Segment: seg, CreatedAt: now})
		}
	}
	if len(records) == 0 {
		return nil
	}

	if err := s.index.Record(ctx, records); err != nil {
		s.logger.Error().Err(err).Int("segments", len(records)).Msg("failed to index content")
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// Owners returns the number of owners with indexed references.
func (s *UsageService) Owners(ctx context.Context) (int64, error) {
	n, err := s.index.CountOwners(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return n, nil
}
