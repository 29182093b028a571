package repl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/snowmerak/repl.go/lib/linemux"
	"github.com/snowmerak/repl.go/lib/logging"
)

const testTimeout = 2 * time.Second

// fakeChannel is a Channel whose inbound frames are pushed by the test
// and whose outbound frames are captured.
type fakeChannel struct {
	frames chan *linemux.Message
	writes chan []byte

	failWrites atomic.Bool
	closeCount atomic.Int32
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		frames: make(chan *linemux.Message, 64),
		writes: make(chan []byte, 64),
	}
}

func (f *fakeChannel) Read(ctx context.Context) (<-chan *linemux.Message, error) {
	return f.frames, nil
}

func (f *fakeChannel) Write(ctx context.Context, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("write failed")
	}
	select {
	case f.writes <- append([]byte(nil), data...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeChannel) Close() error {
	f.closeCount.Add(1)
	return nil
}

func (f *fakeChannel) push(s string) {
	f.frames <- &linemux.Message{Data: []byte(s)}
}

func (f *fakeChannel) pushf(format string, args ...any) {
	f.push(fmt.Sprintf(format, args...))
}

func (f *fakeChannel) nextWrite() (map[string]any, error) {
	select {
	case data := <-f.writes:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid outbound frame %s: %w", data, err)
		}
		return m, nil
	case <-time.After(testTimeout):
		return nil, errors.New("timed out waiting for outbound frame")
	}
}

func (f *fakeChannel) mustWrite(t *testing.T) map[string]any {
	t.Helper()
	m, err := f.nextWrite()
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func (f *fakeChannel) provider() Provider {
	return ProviderFunc(func(ctx context.Context) (Channel, error) {
		return f, nil
	})
}

// recorder collects observer notifications in arrival order.
type recorder struct {
	events chan any
	lost   atomic.Int32
	causes chan error
}

func newRecorder() *recorder {
	return &recorder{
		events: make(chan any, 64),
		causes: make(chan error, 4),
	}
}

func (r *recorder) OnValue(e ValueEvent)   { r.events <- e }
func (r *recorder) OnOutput(e OutputEvent) { r.events <- e }
func (r *recorder) OnDone(e DoneEvent)     { r.events <- e }
func (r *recorder) OnError(e ErrorEvent)   { r.events <- e }
func (r *recorder) OnConnectionLost(cause error) {
	r.lost.Add(1)
	r.causes <- cause
}

func (r *recorder) next(t *testing.T) any {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for notification")
		return nil
	}
}

func (r *recorder) cause(t *testing.T) error {
	t.Helper()
	select {
	case err := <-r.causes:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for connection lost")
		return nil
	}
}

func (r *recorder) expectNone(t *testing.T) {
	t.Helper()
	select {
	case e := <-r.events:
		t.Fatalf("unexpected notification %#v", e)
	default:
	}
}

// sequenceIDs hands out id-1, id-2, ...
type sequenceIDs struct {
	n atomic.Int64
}

func (s *sequenceIDs) Next() (string, error) {
	return fmt.Sprintf("id-%d", s.n.Add(1)), nil
}

func testOptions(t *testing.T, provider Provider, observer Observer) *Options {
	logger := logging.ForTest(t)
	opts := WithProvider(provider)
	opts.Observer = observer
	opts.IDs = &sequenceIDs{}
	opts.Logger = &logger
	opts.HandshakeTimeout = testTimeout
	return opts
}

// dialFake connects a client to a fake channel that answers the handshake with S1.
func dialFake(t *testing.T, mutate func(*Options)) (*Client, *fakeChannel, *recorder) {
	t.Helper()

	ch := newFakeChannel()
	rec := newRecorder()
	opts := testOptions(t, ch.provider(), rec)
	if mutate != nil {
		mutate(opts)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		clone, err := ch.nextWrite()
		if err != nil {
			t.Error(err)
			return
		}
		if clone["op"] != "clone" {
			t.Errorf("Expected clone, got %v", clone)
		}
		ch.push(`{"new-session":"S1","status":["done"]}`)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	c, err := Dial(ctx, opts)
	wg.Wait()
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, ch, rec
}

func timeAfter() <-chan time.Time {
	return time.After(testTimeout)
}
