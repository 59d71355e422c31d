package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/prn-tf/contentstore/internal/domain"
)

// ActionContentStorage tracks every Content one action saves so the
// action can report it with its result, or clean it up.
//
// It is not safe for concurrent use; create one per in-flight action
// with ContentStorageService.ForAction.
type ActionContentStorage struct {
	svc   *ContentStorageService
	saved []domain.Content
}

// ForAction returns a tracker bound to this service.
func (s *ContentStorageService) ForAction() *ActionContentStorage {
	return &ActionContentStorage{svc: s}
}

// Save saves r and tracks the result unless it is empty.
func (a *ActionContentStorage) Save(ctx context.Context, ownerID uuid.UUID, r io.Reader, name, mediaType string) (domain.Content, error) {
	content, err := a.svc.Save(ctx, ownerID, r, name, mediaType)
	if err != nil {
		return domain.Content{}, err
	}
	if len(content.Segments) > 0 {
		a.saved = append(a.saved, content)
	}
	return content, nil
}

// SaveBytes saves data and tracks the result unless it is empty.
func (a *ActionContentStorage) SaveBytes(ctx context.Context, ownerID uuid.UUID, data []byte, name, mediaType string) (domain.Content, error) {
	content, err := a.svc.SaveBytes(ctx, ownerID, data, name, mediaType)
	if err != nil {
		return domain.Content{}, err
	}
	if len(content.Segments) > 0 {
		a.saved = append(a.saved, content)
	}
	return content, nil
}

// SaveMany saves items and tracks every returned Content, empty ones included.
func (a *ActionContentStorage) SaveMany(ctx context.Context, ownerID uuid.UUID, items []SaveManyContent) ([]domain.Content, error) {
	contents, err := a.svc.SaveMany(ctx, ownerID, items)
	if err != nil {
		return nil, err
	}
	a.saved = append(a.saved, contents...)
	return contents, nil
}

// Load reads content through the underlying service.
func (a *ActionContentStorage) Load(ctx context.Context, content domain.Content) (io.ReadCloser, error) {
	return a.svc.Load(ctx, content)
}

// SavedContentSize returns the number of tracked contents.
func (a *ActionContentStorage) SavedContentSize() int {
	return len(a.saved)
}

// SavedContent returns a copy of the tracked contents in save order.
func (a *ActionContentStorage) SavedContent() []domain.Content {
	out := make([]domain.Content, len(a.saved))
	copy(out, a.saved)
	return out
}

// PublishSavedContent moves every tracked Content onto event.SavedContent
// and resets tracking. It returns the number of contents moved.
func (a *ActionContentStorage) PublishSavedContent(event *domain.ActionEvent) int {
	n := len(a.saved)
	if n > 0 {
		event.SavedContent = append(event.SavedContent, a.saved...)
	}
	a.Clear()
	return n
}

// Clear resets tracking. Stored bytes are left alone.
func (a *ActionContentStorage) Clear() {
	a.saved = nil
}

// DeleteUnusedContent removes tracked content the event does not carry
// forward and resets tracking. For error events every tracked content is
// unused; otherwise a content is unused when one of its objects is not
// referenced by the event's output. It returns the number of contents
// whose objects were removed.
func (a *ActionContentStorage) DeleteUnusedContent(ctx context.Context, event *domain.ActionEvent) (int, error) {
	defer a.Clear()

	used := make(map[uuid.UUID]struct{})
	if event.Type != domain.ActionEventError {
		for _, seg := range event.OutputSegments() {
			used[seg.ObjectID] = struct{}{}
		}
	}

	var unused []domain.Segment
	deleted := 0
	for _, content := range a.saved {
		found := false
		for _, seg := range content.Segments {
			if _, ok := used[seg.ObjectID]; ok {
				continue
			}
			unused = append(unused, seg)
			found = true
		}
		if found {
			deleted++
		}
	}

	if deleted == 0 {
		return 0, nil
	}

	if err := a.svc.DeleteAll(ctx, unused); err != nil {
		return 0, err
	}

	a.svc.logger.Debug().
		Str("did", event.DID.String()).
		Str("action", event.ActionName).
		Str("type", string(event.Type)).
		Int("contents", deleted).
		Msg("deleted unused content")

	return deleted, nil
}
