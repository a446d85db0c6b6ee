package notify

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDeliverer struct {
	target  string
	sendErr error
	editErr error

	mu    sync.Mutex
	sends int
	edits []string
}

func (d *fakeDeliverer) Target() string { return d.target }

func (d *fakeDeliverer) Send(context.Context, Message) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.sendErr != nil {
		return "", d.sendErr
	}
	d.sends++
	return "m" + strconv.Itoa(d.sends), nil
}

func (d *fakeDeliverer) Edit(_ context.Context, id string, _ Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.editErr != nil {
		return d.editErr
	}
	d.edits = append(d.edits, id)
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestDispatcher() (*Dispatcher, *MemoryCache, *clock) {
	clk := &clock{now: testNow}
	cache := NewMemoryCache(DefaultTTL)
	return NewDispatcher(cache, WithClock(clk.Now)), cache, clk
}

func TestDispatcherSendsThenEdits(t *testing.T) {
	d, _, clk := newTestDispatcher()
	out := &fakeDeliverer{target: "hook"}
	ctx := context.Background()

	res, err := d.Send(ctx, out, "octo/hello#1-opened", Message{Title: "a"})
	require.NoError(t, err)
	assert.Equal(t, Result{Operation: OperationSend, MessageID: "m1"}, res)

	clk.Advance(time.Minute)
	res, err = d.Send(ctx, out, "octo/hello#1-opened", Message{Title: "b"})
	require.NoError(t, err)
	assert.Equal(t, Result{Operation: OperationEdit, MessageID: "m1"}, res)

	res, err = d.Send(ctx, out, "octo/hello#2-opened", Message{Title: "c"})
	require.NoError(t, err)
	assert.Equal(t, OperationSend, res.Operation)

	assert.Equal(t, 2, out.sends)
	assert.Equal(t, []string{"m1"}, out.edits)
}

func TestDispatcherExpiresEntries(t *testing.T) {
	d, cache, clk := newTestDispatcher()
	out := &fakeDeliverer{target: "hook"}
	ctx := context.Background()

	_, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)

	clk.Advance(DefaultTTL)
	res, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)
	assert.Equal(t, Result{Operation: OperationSend, MessageID: "m2"}, res)
	assert.Equal(t, 1, cache.Len())
}

func TestDispatcherEditResetsTimestamp(t *testing.T) {
	d, _, clk := newTestDispatcher()
	out := &fakeDeliverer{target: "hook"}
	ctx := context.Background()

	_, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)
	clk.Advance(4 * time.Minute)
	_, err = d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)
	clk.Advance(4 * time.Minute)

	res, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)
	assert.Equal(t, OperationEdit, res.Operation)
	assert.Equal(t, 1, out.sends)
}

func TestDispatcherFailureStoresNothing(t *testing.T) {
	d, cache, _ := newTestDispatcher()
	boom := errors.New("boom")
	out := &fakeDeliverer{target: "hook", sendErr: boom}

	_, err := d.Send(context.Background(), out, "k", Message{})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, cache.Len())
}

func TestDispatcherFailedEditKeepsEntry(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := &fakeDeliverer{target: "hook"}
	ctx := context.Background()

	_, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)

	out.editErr = errors.New("edit failed")
	_, err = d.Send(ctx, out, "k", Message{})
	require.Error(t, err)

	out.editErr = nil
	res, err := d.Send(ctx, out, "k", Message{})
	require.NoError(t, err)
	assert.Equal(t, Result{Operation: OperationEdit, MessageID: "m1"}, res)
}

func TestDispatcherScopesKeysByTarget(t *testing.T) {
	d, _, _ := newTestDispatcher()
	first := &fakeDeliverer{target: "hook-a"}
	second := &fakeDeliverer{target: "hook-b"}
	ctx := context.Background()

	_, err := d.Send(ctx, first, "k", Message{})
	require.NoError(t, err)
	res, err := d.Send(ctx, second, "k", Message{})
	require.NoError(t, err)
	assert.Equal(t, OperationSend, res.Operation)
	assert.Empty(t, second.edits)
}

func TestDispatcherConcurrentSameKey(t *testing.T) {
	d, _, _ := newTestDispatcher()
	out := &fakeDeliverer{target: "hook"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Send(context.Background(), out, "k", Message{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, out.sends)
	assert.Len(t, out.edits, 19)
}
