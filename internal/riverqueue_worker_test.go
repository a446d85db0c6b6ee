package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

func riverJob(args RiverEventArgs) *river.Job[RiverEventArgs] {
	return &river.Job[RiverEventArgs]{
		JobRow: &rivertype.JobRow{ID: 42, Attempt: 1, Kind: "ghbridge_event"},
		Args:   args,
	}
}

// TestRiverEventWorkerDecodesEvent tests that job args are turned back into an Event.
func TestRiverEventWorkerDecodesEvent(t *testing.T) {
	var gotTopic string
	var got Event
	worker := NewRiverEventWorker(func(_ context.Context, topic string, event Event) error {
		gotTopic = topic
		got = event
		return nil
	}, zerolog.Nop())

	err := worker.Work(context.Background(), riverJob(RiverEventArgs{
		Topic:    "audit",
		Metadata: map[string]string{"event": "issues", "delivery": "d-1"},
		Payload:  []byte(`{"action":"opened","repository":{"full_name":"octo/hello"},"sender":{"login":"alice","id":1}}`),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotTopic != "audit" {
		t.Fatalf("expected topic audit, got %q", gotTopic)
	}
	if got.Name != "issues" || got.Delivery != "d-1" {
		t.Fatalf("expected issues/d-1, got %s/%s", got.Name, got.Delivery)
	}
	if got.Action != "opened" || got.Repository != "octo/hello" || got.SenderID != 1 {
		t.Fatalf("unexpected event summary: %+v", got)
	}
}

// TestRiverEventWorkerCancelsInvalidPayload tests that undecodable jobs are cancelled.
func TestRiverEventWorkerCancelsInvalidPayload(t *testing.T) {
	called := false
	worker := NewRiverEventWorker(func(context.Context, string, Event) error {
		called = true
		return nil
	}, zerolog.Nop())

	err := worker.Work(context.Background(), riverJob(RiverEventArgs{
		Topic:    "audit",
		Metadata: map[string]string{"event": "push"},
		Payload:  []byte(`{not json`),
	}))
	var cancel *river.JobCancelError
	if !errors.As(err, &cancel) {
		t.Fatalf("expected a job cancel error, got %v", err)
	}
	if called {
		t.Fatalf("expected handler not to run")
	}
}

// TestRiverEventWorkerHandlerError tests that handler errors are returned for retry.
func TestRiverEventWorkerHandlerError(t *testing.T) {
	boom := errors.New("boom")
	worker := NewRiverEventWorker(func(context.Context, string, Event) error {
		return boom
	}, zerolog.Nop())

	err := worker.Work(context.Background(), riverJob(RiverEventArgs{
		Topic:   "stars.created",
		Payload: []byte(`{"action":"created"}`),
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

// TestRegisterRiverEventWorker tests that duplicate kinds are reported instead of panicking.
func TestRegisterRiverEventWorker(t *testing.T) {
	workers := river.NewWorkers()
	worker := NewRiverEventWorker(nil, zerolog.Nop())

	if err := RegisterRiverEventWorker(workers, "ghbridge_event", worker); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RegisterRiverEventWorker(workers, "ghbridge_event", worker); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
	if err := RegisterRiverEventWorker(workers, "", worker); err == nil {
		t.Fatalf("expected empty kind to fail")
	}
}
