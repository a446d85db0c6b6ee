package internal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
)

// RiverEventArgs is the job enqueued for every published delivery. Workers
// register it under the configured kind.
type RiverEventArgs struct {
	kind     string
	Topic    string            `json:"topic"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Payload  json.RawMessage   `json:"payload"`
}

func (a RiverEventArgs) Kind() string { return a.kind }

// NewRiverEventArgs returns empty args bound to kind, for worker registration.
func NewRiverEventArgs(kind string) RiverEventArgs {
	return RiverEventArgs{kind: kind}
}

// riverQueuePublisher inserts jobs through an insert-only River client, so
// events land in river_job with River's own validation and defaults.
type riverQueuePublisher struct {
	pool   *pgxpool.Pool
	client *river.Client[pgx.Tx]
	cfg    RiverQueueConfig
}

func buildRiverQueuePublisher(cfg WatermillConfig, _ watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	pub, err := newRiverQueuePublisher(cfg.RiverQueue)
	if err != nil {
		return nil, nil, err
	}
	return pub, nil, nil
}

func newRiverQueuePublisher(cfg RiverQueueConfig) (*riverQueuePublisher, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("riverqueue dsn is required")
	}
	if cfg.Kind == "" {
		return nil, fmt.Errorf("riverqueue kind is required")
	}
	pool, err := pgxpool.New(context.Background(), cfg.DSN)
	if err != nil {
		return nil, err
	}
	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &riverQueuePublisher{pool: pool, client: client, cfg: cfg}, nil
}

// Publish enqueues one job per message.
func (p *riverQueuePublisher) Publish(topic string, msgs ...*message.Message) error {
	for _, msg := range msgs {
		args, opts, err := p.job(topic, msg)
		if err != nil {
			return err
		}
		if _, err := p.client.Insert(msg.Context(), args, opts); err != nil {
			return fmt.Errorf("riverqueue insert: %w", err)
		}
	}
	return nil
}

func (p *riverQueuePublisher) job(topic string, msg *message.Message) (RiverEventArgs, *river.InsertOpts, error) {
	args := RiverEventArgs{
		kind:     p.cfg.Kind,
		Topic:    topic,
		Metadata: map[string]string(msg.Metadata),
		Payload:  json.RawMessage(msg.Payload),
	}
	if !json.Valid(msg.Payload) {
		encoded, err := json.Marshal(string(msg.Payload))
		if err != nil {
			return args, nil, err
		}
		args.Payload = encoded
	}

	metadata, err := json.Marshal(map[string]string{
		"topic":   topic,
		"message": msg.UUID,
	})
	if err != nil {
		return args, nil, err
	}
	return args, &river.InsertOpts{
		MaxAttempts: p.cfg.MaxAttempts,
		Metadata:    metadata,
		Priority:    p.cfg.Priority,
		Queue:       p.cfg.Queue,
		Tags:        p.cfg.Tags,
	}, nil
}

// Close releases the connection pool.
func (p *riverQueuePublisher) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
