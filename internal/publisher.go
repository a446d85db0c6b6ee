package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmamaqp "github.com/ThreeDotsLabs/watermill-amqp/pkg/amqp"
	wmhttp "github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	wmkafka "github.com/ThreeDotsLabs/watermill-kafka/pkg/kafka"
	wmnats "github.com/ThreeDotsLabs/watermill-nats/pkg/nats"
	wmsql "github.com/ThreeDotsLabs/watermill-sql/pkg/sql"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/go-github/v57/github"
	stan "github.com/nats-io/stan.go"
	"github.com/rs/zerolog"
)

// Publisher fans accepted deliveries out to audit and rule topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	PublishForDrivers(ctx context.Context, topic string, event Event, drivers []string) error
	Close() error
}

// PublisherFactory builds the Watermill publisher for one driver. The
// returned func, when non-nil, releases resources the publisher does not own.
type PublisherFactory func(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error)

var publisherFactories = map[string]PublisherFactory{
	"gochannel":  buildGoChannelPublisher,
	"http":       buildHTTPPublisher,
	"kafka":      buildKafkaPublisher,
	"nats":       buildNATSPublisher,
	"amqp":       buildAMQPPublisher,
	"sql":        buildSQLPublisher,
	"riverqueue": buildRiverQueuePublisher,
}

func RegisterPublisherDriver(name string, factory PublisherFactory) {
	if name == "" || factory == nil {
		return
	}
	publisherFactories[strings.ToLower(name)] = factory
}

type driverPublisher struct {
	name    string
	pub     message.Publisher
	closeFn func() error
}

func (d *driverPublisher) close() error {
	err := d.pub.Close()
	if d.closeFn != nil {
		err = errors.Join(err, d.closeFn())
	}
	return err
}

type publisherMux struct {
	drivers map[string]*driverPublisher
	order   []string
}

// NewPublisher builds one publisher per configured driver. A driver that
// still fails after the configured retries is skipped; an error is returned
// only when no driver could be built.
func NewPublisher(cfg WatermillConfig) (Publisher, error) {
	zl := NewLogger("publisher")
	adapter := NewWatermillLogger(zl)

	names := cfg.Drivers
	if len(names) == 0 && cfg.Driver != "" {
		names = []string{cfg.Driver}
	}
	if len(names) == 0 {
		names = []string{"gochannel"}
	}

	mux := &publisherMux{drivers: make(map[string]*driverPublisher, len(names))}
	for _, name := range names {
		name = strings.ToLower(name)
		if _, dup := mux.drivers[name]; dup {
			continue
		}
		d, err := buildWithRetry(cfg, name, adapter, zl)
		if err != nil {
			zl.Error().Err(err).Str("driver", name).Msg("publisher unavailable, skipping driver")
			continue
		}
		mux.drivers[name] = d
		mux.order = append(mux.order, name)
	}
	if len(mux.order) == 0 {
		return nil, errors.New("no publishers available")
	}
	return mux, nil
}

func buildWithRetry(cfg WatermillConfig, name string, adapter watermill.LoggerAdapter, zl zerolog.Logger) (*driverPublisher, error) {
	factory, ok := publisherFactories[name]
	if !ok {
		return nil, fmt.Errorf("unsupported watermill driver: %s", name)
	}
	attempts := max(cfg.PublishRetry.Attempts, 1)
	delay := time.Duration(cfg.PublishRetry.DelayMS) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pub, closeFn, err := factory(cfg, adapter.With(watermill.LogFields{"driver": name}))
		if err == nil {
			return &driverPublisher{name: name, pub: pub, closeFn: closeFn}, nil
		}
		lastErr = err
		if attempt < attempts {
			zl.Warn().Err(err).Str("driver", name).Int("attempt", attempt).Msg("publisher init failed, retrying")
			time.Sleep(delay)
		}
	}
	return nil, lastErr
}

func (m *publisherMux) Publish(ctx context.Context, topic string, event Event) error {
	return m.PublishForDrivers(ctx, topic, event, nil)
}

// PublishForDrivers sends event to the named drivers, or to every built
// driver when names is empty. Each driver gets its own message copy.
func (m *publisherMux) PublishForDrivers(ctx context.Context, topic string, event Event, names []string) error {
	if len(names) == 0 {
		names = m.order
	}
	var err error
	for _, name := range names {
		d, ok := m.drivers[strings.ToLower(name)]
		if !ok {
			err = errors.Join(err, fmt.Errorf("unknown driver %s", name))
			continue
		}
		msg, encodeErr := eventMessage(ctx, event)
		if encodeErr != nil {
			return encodeErr
		}
		if publishErr := d.pub.Publish(topic, msg); publishErr != nil {
			IncPublishError(d.name)
			err = errors.Join(err, fmt.Errorf("%s: %w", d.name, publishErr))
		}
	}
	return err
}

func (m *publisherMux) Close() error {
	var err error
	for _, name := range m.order {
		err = errors.Join(err, m.drivers[name].close())
	}
	return err
}

// eventMessage wraps the raw GitHub payload, or the encoded event when there
// is none. The delivery ID doubles as the message UUID so consumers can
// drop redelivered webhooks.
func eventMessage(ctx context.Context, event Event) (*message.Message, error) {
	payload := event.RawPayload
	if len(payload) == 0 {
		encoded, err := json.Marshal(event)
		if err != nil {
			return nil, err
		}
		payload = encoded
	}
	uuid := event.Delivery
	if uuid == "" {
		uuid = watermill.NewUUID()
	}

	msg := message.NewMessage(uuid, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("provider", event.Provider)
	msg.Metadata.Set("event", event.Name)
	for key, value := range map[string]string{
		"delivery":   event.Delivery,
		"action":     event.Action,
		"repository": event.Repository,
		"sender":     event.Sender,
	} {
		if value != "" {
			msg.Metadata.Set(key, value)
		}
	}
	if event.SenderID != 0 {
		msg.Metadata.Set("sender_id", strconv.FormatInt(event.SenderID, 10))
	}
	return msg, nil
}

func buildGoChannelPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	return gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            cfg.GoChannel.OutputChannelBuffer,
		Persistent:                     cfg.GoChannel.Persistent,
		BlockPublishUntilSubscriberAck: cfg.GoChannel.BlockPublishUntilSubscriberAck,
	}, logger), nil, nil
}

// buildHTTPPublisher forwards deliveries as HTTP POSTs carrying the GitHub
// event and delivery headers, so the receiver can treat them as webhooks.
func buildHTTPPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if _, err := httpTargetURL(cfg.HTTP, "ping"); err != nil {
		return nil, nil, err
	}
	pub, err := wmhttp.NewPublisher(wmhttp.PublisherConfig{
		MarshalMessageFunc: httpMarshaler(cfg.HTTP),
	}, logger)
	return pub, nil, err
}

func httpMarshaler(cfg HTTPConfig) wmhttp.MarshalMessageFunc {
	return func(topic string, msg *message.Message) (*http.Request, error) {
		target, err := httpTargetURL(cfg, topic)
		if err != nil {
			return nil, err
		}
		req, err := wmhttp.DefaultMarshalMessageFunc(target, msg)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if event := msg.Metadata.Get("event"); event != "" {
			req.Header.Set(github.EventTypeHeader, event)
		}
		if delivery := msg.Metadata.Get("delivery"); delivery != "" {
			req.Header.Set(github.DeliveryIDHeader, delivery)
		}
		return req, nil
	}
}

func httpTargetURL(cfg HTTPConfig, topic string) (string, error) {
	switch strings.ToLower(cfg.Mode) {
	case "topic_url":
		if topic == "" {
			return "", fmt.Errorf("http topic url is empty")
		}
		return topic, nil
	case "base_url":
		if cfg.BaseURL == "" {
			return "", fmt.Errorf("http base_url is required for base_url mode")
		}
		base := strings.TrimRight(cfg.BaseURL, "/")
		if topic == "" {
			return base, nil
		}
		return base + "/" + strings.TrimLeft(topic, "/"), nil
	default:
		return "", fmt.Errorf("unsupported http mode: %s", cfg.Mode)
	}
}

// buildKafkaPublisher keys partitions by repository so one repository's
// deliveries stay ordered.
func buildKafkaPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil, fmt.Errorf("kafka brokers are required")
	}
	marshaler := wmkafka.NewWithPartitioningMarshaler(repositoryPartitionKey)
	pub, err := wmkafka.NewPublisher(cfg.Kafka.Brokers, marshaler, nil, logger)
	return pub, nil, err
}

func repositoryPartitionKey(_ string, msg *message.Message) (string, error) {
	if repo := msg.Metadata.Get("repository"); repo != "" {
		return repo, nil
	}
	return msg.Metadata.Get("event"), nil
}

func buildNATSPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.NATS.ClusterID == "" || cfg.NATS.ClientID == "" {
		return nil, nil, fmt.Errorf("nats cluster_id and client_id are required")
	}
	var opts []stan.Option
	if cfg.NATS.URL != "" {
		opts = append(opts, stan.NatsURL(cfg.NATS.URL))
	}
	pub, err := wmnats.NewStreamingPublisher(wmnats.StreamingPublisherConfig{
		ClusterID:   cfg.NATS.ClusterID,
		ClientID:    cfg.NATS.ClientID,
		StanOptions: opts,
		Marshaler:   wmnats.GobMarshaler{},
	}, logger)
	return pub, nil, err
}

var amqpModes = map[string]func(url string) wmamaqp.Config{
	"":                  func(url string) wmamaqp.Config { return wmamaqp.NewDurableQueueConfig(url) },
	"durable_queue":     func(url string) wmamaqp.Config { return wmamaqp.NewDurableQueueConfig(url) },
	"nondurable_queue":  func(url string) wmamaqp.Config { return wmamaqp.NewNonDurableQueueConfig(url) },
	"durable_pubsub":    func(url string) wmamaqp.Config { return wmamaqp.NewDurablePubSubConfig(url, nil) },
	"nondurable_pubsub": func(url string) wmamaqp.Config { return wmamaqp.NewNonDurablePubSubConfig(url, nil) },
}

func buildAMQPPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.AMQP.URL == "" {
		return nil, nil, fmt.Errorf("amqp url is required")
	}
	mode, ok := amqpModes[strings.ToLower(cfg.AMQP.Mode)]
	if !ok {
		return nil, nil, fmt.Errorf("unsupported amqp mode: %s", cfg.AMQP.Mode)
	}
	pub, err := wmamaqp.NewPublisher(mode(cfg.AMQP.URL), logger)
	return pub, nil, err
}

func buildSQLPublisher(cfg WatermillConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
	if cfg.SQL.Driver == "" || cfg.SQL.DSN == "" {
		return nil, nil, fmt.Errorf("sql driver and dsn are required")
	}
	var schema wmsql.SchemaAdapter
	switch strings.ToLower(cfg.SQL.Dialect) {
	case "postgres", "postgresql":
		schema = wmsql.DefaultPostgreSQLSchema{}
	case "mysql":
		schema = wmsql.DefaultMySQLSchema{}
	default:
		return nil, nil, fmt.Errorf("unsupported sql dialect: %s", cfg.SQL.Dialect)
	}
	db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
	if err != nil {
		return nil, nil, err
	}
	pub, err := wmsql.NewPublisher(db, wmsql.PublisherConfig{
		SchemaAdapter:        schema,
		AutoInitializeSchema: cfg.SQL.AutoInitializeSchema || cfg.SQL.InitializeSchema,
	}, logger)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pub, db.Close, nil
}
