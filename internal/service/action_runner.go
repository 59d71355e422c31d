package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/prn-tf/contentstore/internal/domain"
)

// EventPublisher delivers action events.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.ActionEvent) error
}

// ActionFunc does the work of one action and returns its output content.
type ActionFunc func(ctx context.Context, storage *ActionContentStorage) ([]domain.Content, error)

// RunAction runs fn with a fresh tracker and publishes the resulting event.
//
// On success the event has type successType, carries the output and lists
// every tracked save. On failure it is an error event, everything fn saved
// is deleted, and fn's error is returned after the event is published.
func (s *ContentStorageService) RunAction(
	ctx context.Context,
	publisher EventPublisher,
	did uuid.UUID,
	actionName string,
	successType domain.ActionEventType,
	fn ActionFunc,
) (*domain.ActionEvent, error) {
	action := s.ForAction()
	event := &domain.ActionEvent{
		DID:        did,
		ActionName: actionName,
		Start:      time.Now().UTC(),
	}

	output, runErr := fn(ctx, action)
	event.Stop = time.Now().UTC()

	if runErr != nil {
		event.Type = domain.ActionEventError
		event.ErrorCause = runErr.Error()
		if _, err := action.DeleteUnusedContent(ctx, event); err != nil {
			s.logger.Warn().Err(err).Str("action", actionName).Msg("failed to delete content of failed action")
		}
	} else {
		event.Type = successType
		event.Content = output
		action.PublishSavedContent(event)
	}

	if err := publisher.Publish(ctx, event); err != nil {
		return event, fmt.Errorf("publish %s event for %s: %w", event.Type, did, err)
	}

	s.logger.Debug().
		Str("did", did.String()).
		Str("action", actionName).
		Str("type", string(event.Type)).
		Int("content", len(event.Content)).
		Int("saved_content", len(event.SavedContent)).
		Msg("action finished")

	return event, runErr
}
