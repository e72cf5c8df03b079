package ports

import (
	"context"

	"civicdesk/internal/domain/grievance"
)

// AudioInput is a fully buffered recording; Data can be read any number of times.
type AudioInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

type AudioClassification struct {
	grievance.Enrichment
	TranscribedText string
}

// Classifier calls the external classification service. Every failure is a grievance.ErrClassification.
type Classifier interface {
	ClassifyText(ctx context.Context, description string) (grievance.Enrichment, error)
	ClassifyAudio(ctx context.Context, audio AudioInput) (AudioClassification, error)
}
