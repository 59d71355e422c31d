package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/contentstore/internal/domain"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event *domain.ActionEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestContentStorageService_RunAction_Success(t *testing.T) {
	svc, store, index := newTestContentService(t)
	store.On("PutObject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	index.On("Record", mock.Anything, mock.Anything).Return(nil)

	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.AnythingOfType("*domain.ActionEvent")).Return(nil).Once()
	owner := uuid.New()

	event, err := svc.RunAction(context.Background(), publisher, owner, "ingest", domain.ActionEventIngress,
		func(ctx context.Context, action *ActionContentStorage) ([]domain.Content, error) {
			c, err := action.Save(ctx, owner, strings.NewReader("a,b\n1,2\n"), "data.csv", "text/csv")
			if err != nil {
				return nil, err
			}
			return []domain.Content{c}, nil
		})
	require.NoError(t, err)

	require.Equal(t, owner, event.DID)
	require.Equal(t, "ingest", event.ActionName)
	require.Equal(t, domain.ActionEventIngress, event.Type)
	require.Len(t, event.Content, 1)
	require.Len(t, event.SavedContent, 1)
	require.True(t, event.Content[0].Equal(event.SavedContent[0]))
	require.False(t, event.Stop.Before(event.Start))
	publisher.AssertExpectations(t)
	store.AssertNotCalled(t, "RemoveObjects", mock.Anything, mock.Anything, mock.Anything)
}

func TestContentStorageService_RunAction_FailureDeletesSavedContent(t *testing.T) {
	svc, store, index := newTestContentService(t)
	store.On("PutObject", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	index.On("Record", mock.Anything, mock.Anything).Return(nil)

	var saved domain.Content
	failure := errors.New("row 7 is malformed")
	owner := uuid.New()

	store.On("RemoveObjects", mock.Anything, DefaultBucket, mock.MatchedBy(func(names []string) bool {
		return len(names) == 1 && names[0] == saved.Segments[0].ObjectName()
	})).Return(nil).Once()
	index.On("DeleteByObjects", mock.Anything, mock.Anything).Return(int64(1), nil).Once()

	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(e *domain.ActionEvent) bool {
		return e.Type == domain.ActionEventError && e.ErrorCause == failure.Error() && len(e.SavedContent) == 0
	})).Return(nil).Once()

	event, err := svc.RunAction(context.Background(), publisher, owner, "transform", domain.ActionEventTransform,
		func(ctx context.Context, action *ActionContentStorage) ([]domain.Content, error) {
			var err error
			saved, err = action.SaveBytes(ctx, owner, []byte("partial"), "out", "text/plain")
			require.NoError(t, err)
			return nil, failure
		})
	require.ErrorIs(t, err, failure)
	require.Equal(t, domain.ActionEventError, event.Type)
	store.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestContentStorageService_RunAction_PublishFailure(t *testing.T) {
	svc, _, _ := newTestContentService(t)

	publisher := new(mockPublisher)
	publisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	event, err := svc.RunAction(context.Background(), publisher, uuid.New(), "noop", domain.ActionEventTransform,
		func(context.Context, *ActionContentStorage) ([]domain.Content, error) {
			return nil, nil
		})
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
	require.Equal(t, domain.ActionEventTransform, event.Type)
}
