package realtime

import (
	"context"
	"errors"

	"github.com/friperie/api/internal/services"
)

// Fanout sends each event to every broadcaster and joins their errors.
type Fanout []services.MessageBroadcaster

func (f Fanout) Broadcast(ctx context.Context, event services.MessageEvent) error {
	var errs []error
	for _, b := range f {
		if b == nil {
			continue
		}
		if err := b.Broadcast(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
