package repository

import (
	"context"
)

// Repositories holds all repository instances.
type Repositories struct {
	Segments SegmentIndex
}

// DatabaseHealth is an interface for database health checks.
// This interface satisfies handler.HealthChecker for health endpoints.
type DatabaseHealth interface {
	Ping(ctx context.Context) error
	Health(ctx context.Context) error
	Close() error
}
