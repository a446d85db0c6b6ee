package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Deliverer sends and edits messages on one chat destination.
type Deliverer interface {
	// Target identifies the destination; it scopes dedup keys.
	Target() string
	Send(ctx context.Context, msg Message) (string, error)
	Edit(ctx context.Context, messageID string, msg Message) error
}

// Operation names the outbound call a dispatch performed.
type Operation string

const (
	OperationSend Operation = "send"
	OperationEdit Operation = "edit"
)

// Result describes a completed dispatch.
type Result struct {
	Operation Operation
	MessageID string
}

// Dispatcher decides between sending a new message and editing a recent one
// that shares the same dedup key.
type Dispatcher struct {
	cache  Cache
	now    func() time.Time
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithClock injects the time source used for cache entries and expiry.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) { d.now = now }
}

func WithDispatchLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = logger }
}

// NewDispatcher returns a Dispatcher over cache.
func NewDispatcher(cache Cache, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		cache:  cache,
		now:    time.Now,
		logger: zerolog.Nop(),
		locks:  make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers msg through deliverer. When a fresh entry exists for key the
// cached message is edited, otherwise a new one is sent. The entry is stored
// with the current time only after the outbound call succeeded.
func (d *Dispatcher) Send(ctx context.Context, deliverer Deliverer, key string, msg Message) (Result, error) {
	cacheKey := deliverer.Target() + "|" + key
	unlock := d.lock(cacheKey)
	defer unlock()

	now := d.now()
	if err := d.cache.EvictStale(ctx, now); err != nil {
		return Result{}, fmt.Errorf("evict stale entries: %w", err)
	}
	entry, found, err := d.cache.Get(ctx, cacheKey, now)
	if err != nil {
		return Result{}, fmt.Errorf("lookup %q: %w", key, err)
	}

	result := Result{Operation: OperationSend}
	if found {
		result = Result{Operation: OperationEdit, MessageID: entry.MessageID}
		if err := deliverer.Edit(ctx, entry.MessageID, msg); err != nil {
			return Result{}, err
		}
	} else {
		id, err := deliverer.Send(ctx, msg)
		if err != nil {
			return Result{}, err
		}
		result.MessageID = id
	}

	if err := d.cache.Put(ctx, cacheKey, Entry{MessageID: result.MessageID, CreatedAt: d.now()}); err != nil {
		d.logger.Error().Err(err).Str("key", key).Msg("store dedup entry")
	}
	return result, nil
}

func (d *Dispatcher) lock(key string) func() {
	d.mu.Lock()
	l, ok := d.locks[key]
	if !ok {
		l = &keyLock{}
		d.locks[key] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, key)
		}
		d.mu.Unlock()
	}
}
