package repl

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/snowmerak/repl.go/lib/frame"
)

func submit(t *testing.T, c *Client, ch *fakeChannel, code, segment string) string {
	t.Helper()
	id, err := c.SubmitEvaluation(context.Background(), code, segment)
	if err != nil {
		t.Fatalf("SubmitEvaluation failed: %v", err)
	}
	ch.mustWrite(t)
	return id
}

func TestDispatch_ValueThenDone(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "(* 6 7)", "seg1")

	ch.pushf(`{"id":%q,"ns":"user","value":"42"}`, id)
	ch.pushf(`{"id":%q,"status":["done"]}`, id)

	v, ok := rec.next(t).(ValueEvent)
	if !ok {
		t.Fatalf("Expected ValueEvent")
	}
	if v.Namespace != "user" || v.Value != "42" || v.SegmentID != "seg1" || v.ID != id {
		t.Errorf("Unexpected value event: %+v", v)
	}

	d, ok := rec.next(t).(DoneEvent)
	if !ok {
		t.Fatalf("Expected DoneEvent")
	}
	if d.SegmentID != "seg1" {
		t.Errorf("Unexpected done event: %+v", d)
	}

	if _, ok := c.registry.lookupEvaluation(id); ok {
		t.Error("Evaluation entry should be removed after done")
	}
	if evals, _ := c.Pending(); evals != 0 {
		t.Errorf("Expected no pending evaluations, got %d", evals)
	}
}

func TestDispatch_Output(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, `(println "hello")`, "seg2")

	ch.pushf(`{"id":%q,"out":"hello\n"}`, id)

	o, ok := rec.next(t).(OutputEvent)
	if !ok {
		t.Fatalf("Expected OutputEvent")
	}
	if o.Text != "hello\n" || o.SegmentID != "seg2" {
		t.Errorf("Unexpected output event: %+v", o)
	}
	if evals, _ := c.Pending(); evals != 1 {
		t.Errorf("Output must not remove the entry, pending=%d", evals)
	}
}

func TestDispatch_Error(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "(.foo nil)", "seg3")

	ch.pushf(`{"id":%q,"err":"NullPointerException"}`, id)

	e, ok := rec.next(t).(ErrorEvent)
	if !ok {
		t.Fatalf("Expected ErrorEvent")
	}
	if e.Error != "NullPointerException" || e.SegmentID != "seg3" {
		t.Errorf("Unexpected error event: %+v", e)
	}
}

func TestDispatch_NamespaceUpdatedBeforeNotification(t *testing.T) {
	var seen atomic.Value
	var c *Client

	c, ch, rec := dialFake(t, func(o *Options) {
		inner := o.Observer
		o.Observer = MultiObserver{
			ObserverFuncs{Value: func(e ValueEvent) { seen.Store(c.CurrentNamespace()) }},
			inner,
		}
	})

	if c.CurrentNamespace() != DefaultNamespace {
		t.Errorf("Expected initial namespace %q, got %q", DefaultNamespace, c.CurrentNamespace())
	}

	id := submit(t, c, ch, "(ns my.app)", "seg")
	ch.pushf(`{"id":%q,"ns":"my.app","value":"nil"}`, id)
	rec.next(t)

	if got, _ := seen.Load().(string); got != "my.app" {
		t.Errorf("Observer saw namespace %q, want my.app", got)
	}
	if c.CurrentNamespace() != "my.app" {
		t.Errorf("Expected my.app, got %q", c.CurrentNamespace())
	}
}

func TestDispatch_UnroutableFramesAreDropped(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "1", "seg")

	ch.push(`{"id":"never-registered","ns":"user","value":"1"}`)
	ch.push(`{"id":"never-registered","status":["done"]}`)
	ch.push(`{"out":"no id at all"}`)
	ch.push(`this is not json`)
	ch.pushf(`{"id":%q,"out":"marker"}`, id)

	o, ok := rec.next(t).(OutputEvent)
	if !ok || o.Text != "marker" {
		t.Fatalf("Expected only the marker notification, got %#v", o)
	}
	rec.expectNone(t)
	if c.State() != StateActive {
		t.Errorf("Client should remain active, got %v", c.State())
	}
}

func TestDispatch_FramesAfterDoneAreUnroutable(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "1", "seg")
	marker := submit(t, c, ch, "2", "other")

	ch.pushf(`{"id":%q,"status":["done"]}`, id)
	ch.pushf(`{"id":%q,"out":"late"}`, id)
	ch.pushf(`{"id":%q,"out":"marker"}`, marker)

	if _, ok := rec.next(t).(DoneEvent); !ok {
		t.Fatal("Expected DoneEvent")
	}
	o, ok := rec.next(t).(OutputEvent)
	if !ok || o.Text != "marker" {
		t.Fatalf("Late frame should be dropped, got %#v", o)
	}
}

func TestDispatch_DiagnosticAndStatusAreSilent(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "(throw (Exception.))", "seg")

	ch.pushf(`{"id":%q,"root-ex":"class java.lang.Exception"}`, id)
	ch.pushf(`{"id":%q,"status":["eval-error"]}`, id)
	ch.pushf(`{"id":%q,"out":"marker"}`, id)

	o, ok := rec.next(t).(OutputEvent)
	if !ok || o.Text != "marker" {
		t.Fatalf("Expected marker, got %#v", o)
	}
	if evals, _ := c.Pending(); evals != 1 {
		t.Errorf("Non-terminal status must keep the entry, pending=%d", evals)
	}
}

func TestDispatch_AmbiguousFrameIsRejected(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "1", "seg")

	ch.pushf(`{"id":%q,"ns":"other","out":"both"}`, id)
	ch.pushf(`{"id":%q,"out":"marker"}`, id)

	o, ok := rec.next(t).(OutputEvent)
	if !ok || o.Text != "marker" {
		t.Fatalf("Ambiguous frame should be dropped, got %#v", o)
	}
	if c.CurrentNamespace() != DefaultNamespace {
		t.Errorf("Ambiguous frame must not move the namespace, got %q", c.CurrentNamespace())
	}
}

func TestDispatch_AmbiguousDoneStillCompletes(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "1", "seg")

	ch.pushf(`{"id":%q,"ns":"other","value":"1","status":["done"]}`, id)

	d, ok := rec.next(t).(DoneEvent)
	if !ok || d.SegmentID != "seg" {
		t.Fatalf("Expected DoneEvent for seg, got %#v", d)
	}
	if evals, _ := c.Pending(); evals != 0 {
		t.Errorf("Terminal frame must remove the entry, pending=%d", evals)
	}
	if c.CurrentNamespace() != DefaultNamespace {
		t.Errorf("Ambiguous frame must not move the namespace, got %q", c.CurrentNamespace())
	}
}

func TestDispatch_TolerantTerminalFrame(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	id := submit(t, c, ch, "1", "seg")

	ch.pushf(`{"id":%q,"ns":"","out":"","status":"done"}`, id)

	if _, ok := rec.next(t).(DoneEvent); !ok {
		t.Fatal("Expected DoneEvent for a scalar done status")
	}
	if evals, _ := c.Pending(); evals != 0 {
		t.Errorf("Expected no pending evaluations, got %d", evals)
	}
}

func TestDispatch_InterleavedEvaluations(t *testing.T) {
	c, ch, rec := dialFake(t, nil)
	a := submit(t, c, ch, "a", "segA")
	b := submit(t, c, ch, "b", "segB")

	ch.pushf(`{"id":%q,"out":"from b"}`, b)
	ch.pushf(`{"id":%q,"out":"from a"}`, a)
	ch.pushf(`{"id":%q,"status":["done"]}`, b)
	ch.pushf(`{"id":%q,"status":["done"]}`, a)

	want := []string{"segB", "segA", "segB", "segA"}
	for i, seg := range want {
		var got string
		switch e := rec.next(t).(type) {
		case OutputEvent:
			got = e.SegmentID
		case DoneEvent:
			got = e.SegmentID
		default:
			t.Fatalf("Unexpected event %#v", e)
		}
		if got != seg {
			t.Errorf("Event %d routed to %q, want %q", i, got, seg)
		}
	}
}

func TestDispatch_ServiceCallbacks(t *testing.T) {
	c, ch, rec := dialFake(t, nil)

	var calls atomic.Int32
	var last atomic.Value
	id, err := c.QueryCompletions(context.Background(), "foo", "user", "", func(cs []frame.Candidate) {
		calls.Add(1)
		last.Store(frame.Strings(cs))
	})
	if err != nil {
		t.Fatalf("QueryCompletions failed: %v", err)
	}

	out := ch.mustWrite(t)
	if out["op"] != "complete" || out["symbol"] != "foo" || out["ns"] != "user" || out["id"] != id || out["session"] != "S1" {
		t.Errorf("Unexpected completion frame: %v", out)
	}

	marker := submit(t, c, ch, "marker", "seg")

	ch.pushf(`{"id":%q,"value":["foo","foobar"]}`, id)
	ch.pushf(`{"id":%q,"status":["done"]}`, id)
	ch.pushf(`{"id":%q,"out":"marker"}`, marker)

	rec.next(t)

	if calls.Load() != 1 {
		t.Fatalf("Expected exactly one callback, got %d", calls.Load())
	}
	got, _ := last.Load().([]string)
	if len(got) != 2 || got[0] != "foo" || got[1] != "foobar" {
		t.Errorf("Unexpected candidates: %v", got)
	}
	if _, ok := c.registry.lookupService(id); ok {
		t.Error("Service entry should be removed after done")
	}
	rec.expectNone(t)
}

func TestDispatch_ServiceMultiplePayloads(t *testing.T) {
	c, ch, rec := dialFake(t, nil)

	var frames []frame.Response
	done := make(chan struct{})
	id, err := c.SubmitServiceRequest(context.Background(), frame.Request{"op": "stream-things"}, func(r frame.Response) {
		frames = append(frames, r)
		if len(frames) == 3 {
			close(done)
		}
	})
	if err != nil {
		t.Fatalf("SubmitServiceRequest failed: %v", err)
	}
	ch.mustWrite(t)

	ch.pushf(`{"id":%q,"n":1}`, id)
	ch.pushf(`{"id":%q,"n":2}`, id)
	ch.pushf(`{"id":%q,"status":["partial"]}`, id)
	ch.pushf(`{"id":%q,"status":["done"]}`, id)

	select {
	case <-done:
	case <-rec.events:
		t.Fatal("Service frames must not reach the observer")
	case <-timeAfter():
		t.Fatal("Timed out waiting for service frames")
	}

	if string(frames[0].Fields["n"]) != "1" || string(frames[1].Fields["n"]) != "2" {
		t.Errorf("Callback should receive full frames in order")
	}
}
