package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/snowmerak/repl.go/lib/frame"
	"github.com/snowmerak/repl.go/lib/repl"
)

// serviceWait bounds how long a command waits for the first service answer.
const serviceWait = 2 * time.Second

// printer renders evaluation notifications and wakes the segment waiting for them.
type printer struct {
	mu      sync.Mutex
	out     io.Writer
	waiters map[string]chan struct{}
	lost    chan struct{}
	once    sync.Once
}

func newPrinter(out io.Writer) *printer {
	return &printer{
		out:     out,
		waiters: make(map[string]chan struct{}),
		lost:    make(chan struct{}),
	}
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// expect registers segmentID before its request is sent so the done cannot be missed.
func (p *printer) expect(segmentID string) <-chan struct{} {
	ch := make(chan struct{})
	p.mu.Lock()
	p.waiters[segmentID] = ch
	p.mu.Unlock()
	return ch
}

func (p *printer) forget(segmentID string) {
	p.mu.Lock()
	delete(p.waiters, segmentID)
	p.mu.Unlock()
}

func (p *printer) OnValue(e repl.ValueEvent) {
	p.printf("%s=> %s\n", e.Namespace, e.Raw)
}

func (p *printer) OnOutput(e repl.OutputEvent) {
	p.printf("%s", e.Text)
}

func (p *printer) OnError(e repl.ErrorEvent) {
	p.printf("error: %s\n", strings.TrimRight(e.Error, "\n"))
}

func (p *printer) OnDone(e repl.DoneEvent) {
	p.mu.Lock()
	ch, ok := p.waiters[e.SegmentID]
	delete(p.waiters, e.SegmentID)
	p.mu.Unlock()
	if ok {
		close(ch)
	}
}

func (p *printer) OnConnectionLost(cause error) {
	p.once.Do(func() {
		p.printf("connection closed: %v\n", cause)
		close(p.lost)
	})
}

// session drives one client from line input.
type session struct {
	client  *repl.Client
	printer *printer
	seq     int
}

// run reads commands until EOF, :quit, or connection loss.
func (s *session) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		quit, err := s.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (s *session) handle(ctx context.Context, line string) (bool, error) {
	switch {
	case line == ":quit":
		return true, nil
	case line == ":describe":
		return false, s.describe(ctx)
	case line == ":ns":
		s.printer.printf("%s\n", s.client.CurrentNamespace())
		return false, nil
	case strings.HasPrefix(line, ":complete"):
		symbol := strings.TrimSpace(strings.TrimPrefix(line, ":complete"))
		if symbol == "" {
			s.printer.printf("usage: :complete <prefix>\n")
			return false, nil
		}
		return false, s.complete(ctx, symbol)
	default:
		return false, s.evaluate(ctx, line)
	}
}

func (s *session) evaluate(ctx context.Context, code string) error {
	s.seq++
	segmentID := fmt.Sprintf("stdin-%d", s.seq)

	done := s.printer.expect(segmentID)
	if _, err := s.client.SubmitEvaluation(ctx, code, segmentID); err != nil {
		s.printer.forget(segmentID)
		return err
	}

	select {
	case <-done:
		return nil
	case <-s.printer.lost:
		return repl.ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *session) complete(ctx context.Context, symbol string) error {
	answered := make(chan []frame.Candidate, 1)
	_, err := s.client.QueryCompletions(ctx, symbol, s.client.CurrentNamespace(), "", func(cs []frame.Candidate) {
		select {
		case answered <- cs:
		default:
		}
	})
	if err != nil {
		return err
	}

	select {
	case cs := <-answered:
		s.printer.printf("%s\n", strings.Join(frame.Strings(cs), " "))
	case <-time.After(serviceWait):
		s.printer.printf("no completions\n")
	case <-s.printer.lost:
		return repl.ErrConnectionLost
	}
	return nil
}

func (s *session) describe(ctx context.Context) error {
	answered := make(chan frame.Response, 1)
	_, err := s.client.Describe(ctx, func(resp frame.Response) {
		select {
		case answered <- resp:
		default:
		}
	})
	if err != nil {
		return err
	}

	select {
	case resp := <-answered:
		var ops map[string]json.RawMessage
		if err := json.Unmarshal(resp.Fields["ops"], &ops); err != nil {
			s.printer.printf("describe answer has no ops\n")
			return nil
		}
		names := make([]string, 0, len(ops))
		for name := range ops {
			names = append(names, name)
		}
		sort.Strings(names)
		s.printer.printf("ops: %s\n", strings.Join(names, " "))
	case <-time.After(serviceWait):
		s.printer.printf("no describe answer\n")
	case <-s.printer.lost:
		return repl.ErrConnectionLost
	}
	return nil
}
