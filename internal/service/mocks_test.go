package service

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/prn-tf/contentstore/internal/repository"
	"github.com/prn-tf/contentstore/internal/storage"
)

// =============================================================================
// Mock Types
// =============================================================================

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) GetObject(ctx context.Context, ref storage.ObjectReference) (io.ReadCloser, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// PutObject drains r so expectations can match on the written bytes.
func (m *mockObjectStore) PutObject(ctx context.Context, ref storage.ObjectReference, r io.Reader) (storage.ObjectReference, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.ObjectReference{}, err
	}
	args := m.Called(ctx, ref, data)
	if err := args.Error(0); err != nil {
		return storage.ObjectReference{}, err
	}
	ref.Size = int64(len(data))
	return ref, nil
}

func (m *mockObjectStore) PutObjects(ctx context.Context, bucket string, writes []storage.ObjectWrite) error {
	args := m.Called(ctx, bucket, writes)
	return args.Error(0)
}

func (m *mockObjectStore) RemoveObject(ctx context.Context, ref storage.ObjectReference) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *mockObjectStore) RemoveObjects(ctx context.Context, bucket string, names []string) error {
	args := m.Called(ctx, bucket, names)
	return args.Error(0)
}

type mockSegmentIndex struct {
	mock.Mock
}

func (m *mockSegmentIndex) Record(ctx context.Context, records []repository.SegmentRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

func (m *mockSegmentIndex) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]repository.SegmentRecord, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]repository.SegmentRecord), args.Error(1)
}

func (m *mockSegmentIndex) DeleteByObjects(ctx context.Context, objectIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, objectIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSegmentIndex) CountOwners(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
