package grievance

import (
	"context"
	"strings"

	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/ports"
)

// ListFilter mirrors the listing query parameters. Status accepts any spelling ParseStatus does.
type ListFilter struct {
	Status      string
	CitizenName string
	Area        string
}

// List returns grievances newest first. Every call re-reads the store.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]domain.Grievance, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	if s.repo == nil {
		return nil, errRepoRequired
	}

	query := ports.GrievanceFilter{
		CitizenName: strings.TrimSpace(filter.CitizenName),
		Area:        strings.TrimSpace(filter.Area),
	}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, domain.ValidationError("unknown status %q", raw)
		}
		query.Status = status
	}

	items, err := s.repo.ListGrievances(ctx, query)
	if err != nil {
		return nil, domain.PersistenceError(err)
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Grievance, error) {
	if err := checkContext(ctx); err != nil {
		return domain.Grievance{}, err
	}
	if s.repo == nil {
		return domain.Grievance{}, errRepoRequired
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Grievance{}, domain.ValidationError("id is required")
	}

	record, err := s.repo.GetGrievance(ctx, id)
	if err != nil {
		return domain.Grievance{}, domain.PersistenceError(err)
	}
	return record, nil
}

// History returns the audit trail of one grievance, oldest first.
func (s *Service) History(ctx context.Context, id string) ([]domain.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	events, err := s.repo.ListEvents(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, domain.PersistenceError(err)
	}
	return events, nil
}
