package grievance

import (
	"context"
	"log/slog"
	"strings"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/infrastructure/metrics"
)

// Resolve closes a Pending or In Progress grievance. An empty reply stores DefaultAdminReply.
func (s *Service) Resolve(ctx context.Context, input ResolveInput) (domain.Grievance, error) {
	reply := strings.TrimSpace(input.AdminReply)
	if reply == "" {
		reply = domain.DefaultAdminReply
	}
	return s.transition(ctx, input.ID, input.Actor, domain.EventResolved, domain.StatusPatch{
		Status:     domain.StatusResolved,
		AdminReply: &reply,
	})
}

// Reject closes a Pending or In Progress grievance without a reply.
func (s *Service) Reject(ctx context.Context, input RejectInput) (domain.Grievance, error) {
	return s.transition(ctx, input.ID, input.Actor, domain.EventRejected, domain.StatusPatch{
		Status: domain.StatusRejected,
	})
}

// transition checks and applies one status change with its audit event in a
// single transaction. The update is conditional on the status that was read, so
// of two racing transitions at most one commits.
func (s *Service) transition(ctx context.Context, id string, actor string, action domain.EventAction, patch domain.StatusPatch) (record domain.Grievance, err error) {
	defer func() { metrics.ObserveTransition(string(action), err) }()

	if err := checkContext(ctx); err != nil {
		return domain.Grievance{}, err
	}
	if err := s.requireStore(); err != nil {
		return domain.Grievance{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Grievance{}, domain.ValidationError("id is required")
	}

	var event domain.Event
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		current, err := s.repo.GetGrievance(txCtx, id)
		if err != nil {
			return err
		}
		if err := domain.EnsureTransition(current.Status, patch.Status); err != nil {
			return err
		}

		guarded := patch
		guarded.From = current.Status
		updated, err := s.repo.UpdateStatus(txCtx, id, guarded)
		if err != nil {
			return err
		}

		note := ""
		if patch.AdminReply != nil {
			note = *patch.AdminReply
		}
		appended, err := s.repo.AppendEvent(txCtx, domain.Event{
			GrievanceID: id,
			Action:      action,
			Actor:       normalizeActor(actor),
			FromStatus:  current.Status,
			ToStatus:    updated.Status,
			Note:        note,
			CreatedAt:   updated.UpdatedAt,
		})
		if err != nil {
			return err
		}
		record = updated
		event = appended
		return nil
	})
	if err != nil {
		return domain.Grievance{}, domain.PersistenceError(err)
	}

	logging.Info(ctx, "grievance transitioned",
		slog.String("grievance_id", record.ID),
		slog.String("from", string(event.FromStatus)),
		slog.String("to", string(record.Status)),
		slog.String("actor", event.Actor),
	)
	s.publish(ctx, event, record)
	return record, nil
}
