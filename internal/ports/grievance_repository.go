package ports

import (
	"context"

	"civicdesk/internal/domain/grievance"
)

// GrievanceFilter narrows List results. Zero value lists everything.
type GrievanceFilter struct {
	Status      grievance.Status
	CitizenName string
	Area        string
}

type GrievanceReadRepository interface {
	ListGrievances(ctx context.Context, filter GrievanceFilter) ([]grievance.Grievance, error)
	GetGrievance(ctx context.Context, id string) (grievance.Grievance, error)
	ListEvents(ctx context.Context, grievanceID string) ([]grievance.Event, error)
}

// GrievanceRepository returns grievance.ErrNotFound for unknown ids.
type GrievanceRepository interface {
	GrievanceReadRepository
	CreateGrievance(ctx context.Context, draft grievance.Draft) (grievance.Grievance, error)
	UpdateStatus(ctx context.Context, id string, patch grievance.StatusPatch) (grievance.Grievance, error)
	AppendEvent(ctx context.Context, event grievance.Event) (grievance.Event, error)
}
