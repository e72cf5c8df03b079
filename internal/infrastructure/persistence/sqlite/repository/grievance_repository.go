package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	"civicdesk/internal/infrastructure/persistence/sqlite/model"
	"civicdesk/internal/ports"
)

type GrievanceRepository struct {
	db  *gorm.DB
	now func() time.Time
	ids func() string
}

var _ ports.GrievanceRepository = (*GrievanceRepository)(nil)

func NewGrievanceRepository(db *gorm.DB) *GrievanceRepository {
	return &GrievanceRepository{
		db:  db,
		now: time.Now,
		ids: func() string { return uuid.NewString() },
	}
}

func (r *GrievanceRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *GrievanceRepository) CreateGrievance(ctx context.Context, draft grievance.Draft) (grievance.Grievance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return grievance.Grievance{}, err
	}

	now := model.FormatTime(r.now())
	row := model.Grievance{
		GrievanceID:   r.ids(),
		CitizenName:   draft.CitizenName,
		Area:          draft.Area,
		Description:   draft.Description,
		ImageURL:      draft.ImageURL,
		AudioURL:      draft.AudioURL,
		Category:      draft.Enrichment.Category,
		Priority:      string(draft.Enrichment.Priority),
		Sentiment:     draft.Enrichment.Sentiment,
		EstimatedTime: draft.Enrichment.EstimatedTime,
		Status:        string(grievance.StatusPending),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := db.Create(&row).Error; err != nil {
		return grievance.Grievance{}, errs.Wrap(err, "insert grievance")
	}
	return mapGrievance(row), nil
}

func (r *GrievanceRepository) ListGrievances(ctx context.Context, filter ports.GrievanceFilter) ([]grievance.Grievance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Grievance{})
	if filter.Status != "" {
		query = query.Where("status = ?", string(filter.Status))
	}
	if name := strings.TrimSpace(filter.CitizenName); name != "" {
		query = query.Where("LOWER(citizen_name) = ?", strings.ToLower(name))
	}
	if area := strings.TrimSpace(filter.Area); area != "" {
		query = query.Where("area = ?", area)
	}

	var rows []model.Grievance
	if err := query.Order("created_at desc").Order("seq desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query grievances")
	}

	items := make([]grievance.Grievance, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapGrievance(row))
	}
	return items, nil
}

func (r *GrievanceRepository) GetGrievance(ctx context.Context, id string) (grievance.Grievance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return grievance.Grievance{}, err
	}
	row, err := getGrievanceRow(db, id)
	if err != nil {
		return grievance.Grievance{}, err
	}
	return mapGrievance(row), nil
}

// UpdateStatus writes status, updated_at and, if set, admin_reply. Other columns are never touched.
func (r *GrievanceRepository) UpdateStatus(ctx context.Context, id string, patch grievance.StatusPatch) (grievance.Grievance, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return grievance.Grievance{}, err
	}

	updates := map[string]any{
		"status":     string(patch.Status),
		"updated_at": model.FormatTime(r.now()),
	}
	if patch.AdminReply != nil {
		updates["admin_reply"] = *patch.AdminReply
	}

	query := db.Model(&model.Grievance{}).Where("grievance_id = ?", strings.TrimSpace(id))
	if patch.From != "" {
		query = query.Where("status = ?", string(patch.From))
	}
	result := query.Updates(updates)
	if result.Error != nil {
		return grievance.Grievance{}, errs.Wrap(result.Error, "update grievance status")
	}
	if result.RowsAffected == 0 {
		if patch.From == "" {
			return grievance.Grievance{}, fmt.Errorf("%w: %s", grievance.ErrNotFound, id)
		}
		current, err := getGrievanceRow(db, id)
		if err != nil {
			return grievance.Grievance{}, err
		}
		return grievance.Grievance{}, fmt.Errorf("%w: %s is %s, not %s", grievance.ErrInvalidTransition, id, current.Status, patch.From)
	}

	row, err := getGrievanceRow(db, id)
	if err != nil {
		return grievance.Grievance{}, err
	}
	return mapGrievance(row), nil
}

// AppendEvent inserts event and returns it with the assigned id and timestamp.
func (r *GrievanceRepository) AppendEvent(ctx context.Context, event grievance.Event) (grievance.Event, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return grievance.Event{}, err
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	row := model.GrievanceEvent{
		GrievanceID: event.GrievanceID,
		Action:      string(event.Action),
		Actor:       event.Actor,
		FromStatus:  string(event.FromStatus),
		ToStatus:    string(event.ToStatus),
		Note:        event.Note,
		CreatedAt:   model.FormatTime(createdAt),
	}
	if err := db.Create(&row).Error; err != nil {
		return grievance.Event{}, errs.Wrap(err, "insert grievance event")
	}
	return mapEvent(row), nil
}

func (r *GrievanceRepository) ListEvents(ctx context.Context, grievanceID string) ([]grievance.Event, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.GrievanceEvent
	if err := db.
		Where("grievance_id = ?", grievanceID).
		Order("event_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query grievance events")
	}

	items := make([]grievance.Event, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapEvent(row))
	}
	return items, nil
}

func getGrievanceRow(db *gorm.DB, id string) (model.Grievance, error) {
	var row model.Grievance
	if err := db.Where("grievance_id = ?", strings.TrimSpace(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Grievance{}, fmt.Errorf("%w: %s", grievance.ErrNotFound, id)
		}
		return model.Grievance{}, errs.Wrap(err, "query grievance")
	}
	return row, nil
}

func mapGrievance(row model.Grievance) grievance.Grievance {
	return grievance.Grievance{
		ID:            row.GrievanceID,
		CitizenName:   row.CitizenName,
		Area:          row.Area,
		Description:   row.Description,
		ImageURL:      row.ImageURL,
		AudioURL:      row.AudioURL,
		Category:      row.Category,
		Priority:      grievance.Priority(row.Priority),
		Sentiment:     row.Sentiment,
		EstimatedTime: row.EstimatedTime,
		Status:        grievance.Status(row.Status),
		AdminReply:    row.AdminReply,
		CreatedAt:     model.ParseTime(row.CreatedAt),
		UpdatedAt:     model.ParseTime(row.UpdatedAt),
	}
}

func mapEvent(row model.GrievanceEvent) grievance.Event {
	return grievance.Event{
		ID:          row.EventID,
		GrievanceID: row.GrievanceID,
		Action:      grievance.EventAction(row.Action),
		Actor:       row.Actor,
		FromStatus:  grievance.Status(row.FromStatus),
		ToStatus:    grievance.Status(row.ToStatus),
		Note:        row.Note,
		CreatedAt:   model.ParseTime(row.CreatedAt),
	}
}
