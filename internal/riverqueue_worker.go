package internal

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

// EventHandler consumes an audit event taken off the River queue.
type EventHandler func(ctx context.Context, topic string, event Event) error

// RiverEventWorker turns RiverEventArgs jobs back into Events.
type RiverEventWorker struct {
	river.WorkerDefaults[RiverEventArgs]

	handle EventHandler
	logger zerolog.Logger
}

func NewRiverEventWorker(handle EventHandler, logger zerolog.Logger) *RiverEventWorker {
	return &RiverEventWorker{handle: handle, logger: logger}
}

// RegisterRiverEventWorker adds w to workers under kind. A duplicate or
// invalid registration is returned as an error instead of a panic.
func RegisterRiverEventWorker(workers *river.Workers, kind string, w *RiverEventWorker) (err error) {
	if kind == "" {
		return fmt.Errorf("riverqueue kind is required")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("register river worker %q: %v", kind, r)
		}
	}()
	river.AddWorkerArgs(workers, NewRiverEventArgs(kind), w)
	return nil
}

func (w *RiverEventWorker) Work(ctx context.Context, job *river.Job[RiverEventArgs]) error {
	args := job.Args
	event, err := NewEvent(args.Metadata["event"], args.Metadata["delivery"], args.Payload)
	if err != nil {
		// Undecodable payloads are cancelled rather than retried.
		return river.JobCancel(fmt.Errorf("job %d: %w", job.ID, err))
	}
	w.logger.Debug().
		Int64("job", job.ID).
		Int("attempt", job.Attempt).
		Str("topic", args.Topic).
		Str("event", event.Name).
		Str("action", event.Action).
		Str("repository", event.Repository).
		Msg("audit event")
	if w.handle == nil {
		return nil
	}
	return w.handle(ctx, args.Topic, event)
}
