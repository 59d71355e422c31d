package domain

import (
	"sort"

	"github.com/google/uuid"
)

// DistinctCoveredBytes returns the number of distinct stored bytes referenced
// by the segments. Bytes covered by several overlapping segments of the same
// object are counted once. Ranges of different objects never overlap.
func DistinctCoveredBytes(segments []Segment) int64 {
	byObject := make(map[uuid.UUID][]Segment)
	for _, s := range segments {
		if s.Size == 0 {
			continue
		}
		byObject[s.ObjectID] = append(byObject[s.ObjectID], s)
	}

	var total int64
	for _, ranges := range byObject {
		total += mergedLength(ranges)
	}
	return total
}

// mergedLength sorts ranges of one object by offset and sums the length of
// their union.
func mergedLength(ranges []Segment) int64 {
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Offset < ranges[j].Offset
	})

	var total int64
	start, end := ranges[0].Offset, ranges[0].End()
	for _, r := range ranges[1:] {
		if r.Offset > end {
			total += end - start
			start, end = r.Offset, r.End()
			continue
		}
		end = max(end, r.End())
	}
	return total + (end - start)
}
