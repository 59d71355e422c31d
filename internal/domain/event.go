package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActionEventType is the outcome reported by an action.
type ActionEventType string

const (
	// ActionEventIngress reports content that entered the system.
	ActionEventIngress ActionEventType = "INGRESS"

	// ActionEventTransform reports output content that replaces the input.
	ActionEventTransform ActionEventType = "TRANSFORM"

	// ActionEventError reports a failed action. None of its saved content survives.
	ActionEventError ActionEventType = "ERROR"

	// ActionEventFilter reports that the input was dropped without output.
	ActionEventFilter ActionEventType = "FILTER"
)

// ActionEvent is the result an action publishes after processing one owner's content.
type ActionEvent struct {
	// DID is the owner the action processed.
	DID uuid.UUID `json:"did"`

	// ActionName identifies the action that produced the event.
	ActionName string `json:"actionName"`

	// Type is the outcome of the action.
	Type ActionEventType `json:"type"`

	// Content is the output content. Empty for error and filter events.
	Content []Content `json:"content,omitempty"`

	// SavedContent lists everything the action wrote to storage while running.
	SavedContent []Content `json:"savedContent,omitempty"`

	// ErrorCause is set for error events.
	ErrorCause string `json:"errorCause,omitempty"`

	// Start is when the action began processing.
	Start time.Time `json:"start"`

	// Stop is when the action finished processing.
	Stop time.Time `json:"stop"`
}

// OutputSegments returns every segment referenced by the event's output content.
func (e *ActionEvent) OutputSegments() []Segment {
	var segments []Segment
	for _, c := range e.Content {
		segments = append(segments, c.Segments...)
	}
	return segments
}
