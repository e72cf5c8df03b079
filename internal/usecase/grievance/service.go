package grievance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	"civicdesk/internal/ports"
)

// DefaultActor is recorded on audit events when the caller does not name one.
const DefaultActor = "system"

var (
	errRepoRequired       = errors.New("grievance repository is required")
	errUoWRequired        = errors.New("grievance unit of work is required")
	errMediaRequired      = errors.New("media store is required")
	errClassifierRequired = errors.New("classifier is required")
)

// AreaCatalog reports whether an area names a known zone.
type AreaCatalog interface {
	Contains(area string) bool
}

// Options carries the optional collaborators of the service.
type Options struct {
	Media          ports.MediaStore
	Classifier     ports.Classifier
	Events         ports.EventPublisher
	Cache          ports.Cache
	Zones          AreaCatalog
	StrictAreas    bool
	IdempotencyTTL time.Duration
}

type Service struct {
	repo           ports.GrievanceRepository
	uow            ports.UnitOfWork
	media          ports.MediaStore
	classifier     ports.Classifier
	events         ports.EventPublisher
	cache          ports.Cache
	zones          AreaCatalog
	strictAreas    bool
	idempotencyTTL time.Duration
}

// NewService wires intake and lifecycle usecases around the grievance store.
func NewService(repo ports.GrievanceRepository, uow ports.UnitOfWork, opts Options) *Service {
	events := opts.Events
	if events == nil {
		events = ports.NopPublisher{}
	}
	return &Service{
		repo:           repo,
		uow:            uow,
		media:          opts.Media,
		classifier:     opts.Classifier,
		events:         events,
		cache:          opts.Cache,
		zones:          opts.Zones,
		strictAreas:    opts.StrictAreas,
		idempotencyTTL: opts.IdempotencyTTL,
	}
}

// Attachment is an uploaded file as received from the transport.
type Attachment struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type SubmitTextInput struct {
	CitizenName    string
	Area           string
	Description    string
	Image          *Attachment
	IdempotencyKey string
	Actor          string
}

type SubmitAudioInput struct {
	CitizenName    string
	Area           string
	Audio          *Attachment
	Image          *Attachment
	IdempotencyKey string
	Actor          string
}

type ResolveInput struct {
	ID         string
	AdminReply string
	Actor      string
}

type RejectInput struct {
	ID    string
	Actor string
}

func checkContext(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	return nil
}

func (s *Service) requireStore() error {
	if s.repo == nil {
		return errRepoRequired
	}
	if s.uow == nil {
		return errUoWRequired
	}
	return nil
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return DefaultActor
	}
	return actor
}

// publish runs after commit. Failures are logged only; the change already happened.
func (s *Service) publish(ctx context.Context, event domain.Event, record domain.Grievance) {
	err := s.events.Publish(context.WithoutCancel(ctx), ports.GrievanceEvent{Event: event, Grievance: record})
	if err != nil {
		logging.Warn(ctx, "publish grievance event failed",
			slog.String("grievance_id", record.ID),
			slog.String("action", string(event.Action)),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
