package linemux

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Node struct {
	reader io.Reader
	writer io.Writer

	writerLock *sync.Mutex
	config     Config

	messagesWritten atomic.Uint64
	messagesRead    atomic.Uint64
	bytesWritten    atomic.Uint64
	bytesRead       atomic.Uint64

	closed atomic.Bool
}

func NewNode(reader io.Reader, writer io.Writer) *Node {
	return NewNodeWithConfig(reader, writer, DefaultConfig())
}

func NewNodeWithConfig(reader io.Reader, writer io.Writer, config Config) *Node {
	def := DefaultConfig()
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = def.MaxMessageSize
	}
	if config.BufferSize <= 0 {
		config.BufferSize = def.BufferSize
	}
	return &Node{
		reader:     reader,
		writer:     writer,
		writerLock: &sync.Mutex{},
		config:     config,
	}
}

// ReadMessage starts reading lines and returns the channel they are delivered on.
// Blank lines are skipped. The channel is closed at end of stream; a read error
// is delivered as a final Message with Err set before the channel closes.
func (n *Node) ReadMessage(ctx context.Context) (chan *Message, error) {
	if n.reader == nil {
		return nil, fmt.Errorf("reader is nil")
	}

	ch := make(chan *Message, n.config.BufferSize)

	go func() {
		defer close(ch)

		scanner := bufio.NewScanner(n.reader)
		initial := min(64*1024, n.config.MaxMessageSize)
		scanner.Buffer(make([]byte, initial), n.config.MaxMessageSize)

		for scanner.Scan() {
			line := bytes.TrimRight(scanner.Bytes(), "\r")
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}

			data := append([]byte(nil), line...)
			n.messagesRead.Add(1)
			n.bytesRead.Add(uint64(len(data)))

			select {
			case ch <- &Message{Data: data}:
			case <-ctx.Done():
				return
			}
		}

		err := scanner.Err()
		if err == nil || errors.Is(err, io.ErrClosedPipe) || n.closed.Load() {
			return
		}
		if errors.Is(err, bufio.ErrTooLong) {
			err = fmt.Errorf("line exceeds maximum %d bytes: %w", n.config.MaxMessageSize, err)
		}

		select {
		case ch <- &Message{Err: err}:
		case <-ctx.Done():
		}
	}()

	return ch, nil
}

// WriteMessage writes data followed by a newline as a single write.
func (n *Node) WriteMessage(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return ErrEmbeddedNewline
	}
	if len(data) > n.config.MaxMessageSize {
		return fmt.Errorf("data length %d exceeds maximum %d", len(data), n.config.MaxMessageSize)
	}

	n.writerLock.Lock()
	defer n.writerLock.Unlock()
	if n.writer == nil {
		return fmt.Errorf("writer is nil")
	}
	if n.closed.Load() {
		return fmt.Errorf("node is closed")
	}

	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	if err := n.write(ctx, buf); err != nil {
		return err
	}

	n.messagesWritten.Add(1)
	n.bytesWritten.Add(uint64(len(data)))
	return nil
}

type deadlineWriter interface {
	SetWriteDeadline(t time.Time) error
}

// write bounds a single write by ctx. Writers with deadlines (net.Conn) get the ctx deadline;
// other writers are raced against ctx.Done. An aborted write leaves the node closed.
// Callers hold writerLock.
func (n *Node) write(ctx context.Context, buf []byte) error {
	if dw, ok := n.writer.(deadlineWriter); ok {
		deadline, _ := ctx.Deadline()
		if err := dw.SetWriteDeadline(deadline); err == nil {
			_, err := n.writer.Write(buf)
			if err == nil {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				n.closed.Store(true)
				return fmt.Errorf("%w: %w", ErrWriteAborted, err)
			}
			return fmt.Errorf("failed to write message: %w", err)
		}
	}

	if ctx.Done() == nil {
		if _, err := n.writer.Write(buf); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	}

	result := make(chan error, 1)
	go func() {
		_, err := n.writer.Write(buf)
		result <- err
	}()

	select {
	case err := <-result:
		if err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return nil
	case <-ctx.Done():
		n.closed.Store(true)
		return fmt.Errorf("%w: %w", ErrWriteAborted, ctx.Err())
	}
}

// Close marks the node closed. The underlying reader and writer belong to the caller.
func (n *Node) Close() error {
	n.closed.Store(true)
	return nil
}

// GetMetrics returns a snapshot of the traffic counters
func (n *Node) GetMetrics() *Metrics {
	return &Metrics{
		MessagesWritten: n.messagesWritten.Load(),
		MessagesRead:    n.messagesRead.Load(),
		BytesWritten:    n.bytesWritten.Load(),
		BytesRead:       n.bytesRead.Load(),
	}
}
