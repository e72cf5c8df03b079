package grievance

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"civicdesk/internal/bootstrap/logging"
	domain "civicdesk/internal/domain/grievance"
	"civicdesk/internal/errs"
	"civicdesk/internal/infrastructure/metrics"
	"civicdesk/internal/ports"
)

const (
	modeText  = "text"
	modeAudio = "audio"
)

// SubmitText stores the optional image, classifies the description and persists
// the enriched record. Nothing is persisted unless every step succeeds.
func (s *Service) SubmitText(ctx context.Context, input SubmitTextInput) (record domain.Grievance, err error) {
	defer func() { metrics.ObserveSubmission(modeText, err) }()

	if err := checkContext(ctx); err != nil {
		return domain.Grievance{}, err
	}
	if err := s.requireIntake(); err != nil {
		return domain.Grievance{}, err
	}

	citizenName := strings.TrimSpace(input.CitizenName)
	area := strings.TrimSpace(input.Area)
	description := strings.TrimSpace(input.Description)
	if err := s.validateSubmitter(citizenName, area, description, true); err != nil {
		return domain.Grievance{}, err
	}

	if existing, ok := s.replay(ctx, modeText, input.IdempotencyKey); ok {
		return existing, nil
	}

	var stored []ports.StoredMedia
	defer func() {
		if err != nil {
			s.discard(ctx, stored)
		}
	}()

	imageURL := ""
	if input.Image != nil {
		image, err := s.storeAttachment(ctx, ports.MediaImage, *input.Image)
		if err != nil {
			return domain.Grievance{}, err
		}
		stored = append(stored, image)
		imageURL = image.URL
	}

	enrichment, err := s.classifier.ClassifyText(ctx, description)
	if err != nil {
		return domain.Grievance{}, domain.ClassificationError(err)
	}

	record, err = s.create(ctx, domain.Draft{
		CitizenName: citizenName,
		Area:        area,
		Description: description,
		ImageURL:    imageURL,
		Enrichment:  enrichment,
	}, input.Actor)
	if err != nil {
		return domain.Grievance{}, err
	}

	s.remember(ctx, modeText, input.IdempotencyKey, record.ID)
	return record, nil
}

// SubmitAudio buffers the recording once, stores it and sends the same bytes to the
// classifier concurrently. The transcription becomes the description.
func (s *Service) SubmitAudio(ctx context.Context, input SubmitAudioInput) (record domain.Grievance, err error) {
	defer func() { metrics.ObserveSubmission(modeAudio, err) }()

	if err := checkContext(ctx); err != nil {
		return domain.Grievance{}, err
	}
	if err := s.requireIntake(); err != nil {
		return domain.Grievance{}, err
	}

	citizenName := strings.TrimSpace(input.CitizenName)
	area := strings.TrimSpace(input.Area)
	if err := s.validateSubmitter(citizenName, area, "", false); err != nil {
		return domain.Grievance{}, err
	}
	if input.Audio == nil || input.Audio.Body == nil {
		return domain.Grievance{}, domain.ValidationError("no audio file uploaded")
	}

	data, err := io.ReadAll(input.Audio.Body)
	if err != nil {
		return domain.Grievance{}, domain.ValidationError("read audio upload: %v", err)
	}
	if len(data) == 0 {
		return domain.Grievance{}, domain.ValidationError("no audio file uploaded")
	}

	if existing, ok := s.replay(ctx, modeAudio, input.IdempotencyKey); ok {
		return existing, nil
	}

	var stored []ports.StoredMedia
	defer func() {
		if err != nil {
			s.discard(ctx, stored)
		}
	}()

	imageURL := ""
	if input.Image != nil {
		image, err := s.storeAttachment(ctx, ports.MediaImage, *input.Image)
		if err != nil {
			return domain.Grievance{}, err
		}
		stored = append(stored, image)
		imageURL = image.URL
	}

	var (
		audio          ports.StoredMedia
		audioStored    bool
		classification ports.AudioClassification
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		saved, err := s.storeAttachment(groupCtx, ports.MediaAudio, Attachment{
			Filename:    input.Audio.Filename,
			ContentType: input.Audio.ContentType,
			Body:        bytes.NewReader(data),
		})
		if err != nil {
			return err
		}
		audio = saved
		audioStored = true
		return nil
	})
	group.Go(func() error {
		result, err := s.classifier.ClassifyAudio(groupCtx, ports.AudioInput{
			Filename:    input.Audio.Filename,
			ContentType: input.Audio.ContentType,
			Data:        data,
		})
		if err != nil {
			return domain.ClassificationError(err)
		}
		classification = result
		return nil
	})
	waitErr := group.Wait()
	if audioStored {
		stored = append(stored, audio)
	}
	if waitErr != nil {
		return domain.Grievance{}, waitErr
	}

	description := strings.TrimSpace(classification.TranscribedText)
	if description == "" {
		return domain.Grievance{}, domain.ClassificationError(errors.New("empty transcription"))
	}

	record, err = s.create(ctx, domain.Draft{
		CitizenName: citizenName,
		Area:        area,
		Description: description,
		ImageURL:    imageURL,
		AudioURL:    audio.URL,
		Enrichment:  classification.Enrichment,
	}, input.Actor)
	if err != nil {
		return domain.Grievance{}, err
	}

	s.remember(ctx, modeAudio, input.IdempotencyKey, record.ID)
	return record, nil
}

func (s *Service) requireIntake() error {
	if err := s.requireStore(); err != nil {
		return err
	}
	if s.media == nil {
		return errMediaRequired
	}
	if s.classifier == nil {
		return errClassifierRequired
	}
	return nil
}

func (s *Service) validateSubmitter(citizenName string, area string, description string, needDescription bool) error {
	var missing []string
	if citizenName == "" {
		missing = append(missing, "citizenName")
	}
	if area == "" {
		missing = append(missing, "area")
	}
	if needDescription && description == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrValidation, &domain.FieldError{Fields: missing})
	}
	if s.strictAreas && s.zones != nil && !s.zones.Contains(area) {
		return domain.ValidationError("unknown area %q", area)
	}
	return nil
}

func (s *Service) storeAttachment(ctx context.Context, kind ports.MediaKind, attachment Attachment) (ports.StoredMedia, error) {
	if attachment.Body == nil {
		return ports.StoredMedia{}, domain.ValidationError("%s upload has no content", kind)
	}
	saved, err := s.media.Save(ctx, ports.MediaUpload{
		Kind:        kind,
		Filename:    attachment.Filename,
		ContentType: attachment.ContentType,
		Body:        attachment.Body,
	})
	if err != nil {
		return ports.StoredMedia{}, domain.MediaStoreError(errs.Wrapf(err, "store %s", kind))
	}
	return saved, nil
}

// create persists the draft together with its "created" audit event.
func (s *Service) create(ctx context.Context, draft domain.Draft, actor string) (domain.Grievance, error) {
	if err := draft.Enrichment.Validate(); err != nil {
		return domain.Grievance{}, domain.ClassificationError(err)
	}

	var (
		record domain.Grievance
		event  domain.Event
	)
	err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err := s.repo.CreateGrievance(txCtx, draft)
		if err != nil {
			return err
		}
		appended, err := s.repo.AppendEvent(txCtx, domain.Event{
			GrievanceID: created.ID,
			Action:      domain.EventCreated,
			Actor:       normalizeActor(actor),
			ToStatus:    created.Status,
			CreatedAt:   created.CreatedAt,
		})
		if err != nil {
			return err
		}
		record = created
		event = appended
		return nil
	})
	if err != nil {
		return domain.Grievance{}, domain.PersistenceError(err)
	}

	logging.Info(ctx, "grievance created",
		slog.String("grievance_id", record.ID),
		slog.String("category", record.Category),
		slog.String("priority", string(record.Priority)),
	)
	s.publish(ctx, event, record)
	return record, nil
}

// discard removes media written for a submission that did not complete.
func (s *Service) discard(ctx context.Context, stored []ports.StoredMedia) {
	cleanupCtx := context.WithoutCancel(ctx)
	for _, media := range stored {
		if err := s.media.Remove(cleanupCtx, media.Name); err != nil {
			logging.Warn(ctx, "remove orphaned media failed",
				slog.String("media", media.Name),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}
}

func idempotencyCacheKey(mode string, key string) string {
	return "intake:" + mode + ":" + key
}

// replay returns the grievance created earlier under the same idempotency key.
func (s *Service) replay(ctx context.Context, mode string, key string) (domain.Grievance, bool) {
	key = strings.TrimSpace(key)
	if key == "" || s.cache == nil {
		return domain.Grievance{}, false
	}
	id, found, err := s.cache.Get(ctx, idempotencyCacheKey(mode, key))
	if err != nil {
		logging.Warn(ctx, "idempotency lookup failed", slog.Any("err", errs.Loggable(err)))
		return domain.Grievance{}, false
	}
	if !found {
		return domain.Grievance{}, false
	}
	record, err := s.repo.GetGrievance(ctx, id)
	if err != nil {
		logging.Warn(ctx, "idempotent replay target missing",
			slog.String("grievance_id", id),
			slog.Any("err", errs.Loggable(err)),
		)
		return domain.Grievance{}, false
	}
	logging.Info(ctx, "idempotent submission replayed", slog.String("grievance_id", id))
	return record, true
}

func (s *Service) remember(ctx context.Context, mode string, key string, id string) {
	key = strings.TrimSpace(key)
	if key == "" || s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, idempotencyCacheKey(mode, key), id, s.idempotencyTTL); err != nil {
		logging.Warn(ctx, "idempotency store failed", slog.Any("err", errs.Loggable(err)))
	}
}
