package ports

import (
	"context"

	"civicdesk/internal/domain/grievance"
)

// GrievanceEvent is what gets broadcast after a committed change.
type GrievanceEvent struct {
	Event     grievance.Event     `json:"event"`
	Grievance grievance.Grievance `json:"grievance"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event GrievanceEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, GrievanceEvent) error { return nil }
