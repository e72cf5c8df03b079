package events

import (
	"context"
	"errors"

	"civicdesk/internal/ports"
)

// Fanout publishes to every target and joins their errors; one failing target does not starve the rest.
type Fanout []ports.EventPublisher

var _ ports.EventPublisher = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, event ports.GrievanceEvent) error {
	var joined []error
	for _, target := range f {
		if target == nil {
			continue
		}
		if err := target.Publish(ctx, event); err != nil {
			joined = append(joined, err)
		}
	}
	return errors.Join(joined...)
}
