package postgres

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/contentstore/internal/config"
	"github.com/prn-tf/contentstore/internal/domain"
	"github.com/prn-tf/contentstore/internal/repository"
)

// The PostgreSQL index is exercised only against a live server:
//
//	CONTENTSTORE_TEST_POSTGRES_HOST=localhost go test ./internal/repository/postgres/...
func newTestDB(t *testing.T) *DB {
	t.Helper()

	host := os.Getenv("CONTENTSTORE_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("CONTENTSTORE_TEST_POSTGRES_HOST not set; skipping PostgreSQL test")
	}
	port, _ := strconv.Atoi(os.Getenv("CONTENTSTORE_TEST_POSTGRES_PORT"))
	if port == 0 {
		port = 5432
	}

	cfg := config.DatabaseConfig{
		Driver:       "postgres",
		Host:         host,
		Port:         port,
		User:         "contentstore",
		Password:     os.Getenv("CONTENTSTORE_TEST_POSTGRES_PASSWORD"),
		Database:     "contentstore",
		SSLMode:      "disable",
		MaxOpenConns: 4,
		MaxIdleConns: 1,
	}

	ctx := context.Background()
	db, err := NewDB(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	return db
}

func TestSegmentRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	index := NewSegmentRepository(newTestDB(t))

	owner, object := uuid.New(), uuid.New()
	require.NoError(t, index.Record(ctx, []repository.SegmentRecord{
		{Segment: domain.Segment{ObjectID: object, Offset: 0, Size: 10, OwnerID: owner}, Checksum: "abc"},
		{Segment: domain.Segment{ObjectID: object, Offset: 4, Size: 2, OwnerID: owner}},
	}))

	records, err := index.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, object, records[0].Segment.ObjectID)
	require.Equal(t, "abc", records[0].Checksum)

	n, err := index.DeleteByObjects(ctx, []uuid.UUID{object})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
