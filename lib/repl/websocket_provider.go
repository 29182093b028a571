package repl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/snowmerak/repl.go/lib/linemux"
)

// DefaultPath is the websocket path the REPL relay serves.
const DefaultPath = "/repl"

// WebSocketURL builds ws://host:port/repl. An empty port leaves the host as is.
func WebSocketURL(host, port string) string {
	if port != "" {
		host = net.JoinHostPort(host, port)
	}
	u := url.URL{Scheme: "ws", Host: host, Path: DefaultPath}
	return u.String()
}

// WebSocketConfig holds configuration for websocket communication
type WebSocketConfig struct {
	URL    string      // ws:// or wss:// endpoint
	Header http.Header // extra handshake headers

	// Dialer overrides websocket.DefaultDialer
	Dialer *websocket.Dialer

	// ReadLimit caps a single inbound frame in bytes (default: 10MB)
	ReadLimit int64
}

// WebSocketProvider provides text-frame websocket communication
type WebSocketProvider struct {
	config WebSocketConfig
}

// NewWebSocketProvider creates a new websocket communication provider
func NewWebSocketProvider(config WebSocketConfig) *WebSocketProvider {
	if config.ReadLimit <= 0 {
		config.ReadLimit = 10 * 1024 * 1024
	}
	return &WebSocketProvider{config: config}
}

// Open implements Provider
func (p *WebSocketProvider) Open(ctx context.Context) (Channel, error) {
	if p.config.URL == "" {
		return nil, fmt.Errorf("websocket url is empty")
	}

	dialer := p.config.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, p.config.URL, p.config.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", p.config.URL, err)
	}
	conn.SetReadLimit(p.config.ReadLimit)

	return &webSocketChannel{conn: conn, closed: make(chan struct{})}, nil
}

type webSocketChannel struct {
	conn      *websocket.Conn
	writeLock sync.Mutex

	once     sync.Once
	closed   chan struct{}
	closeErr error
}

func (w *webSocketChannel) Read(ctx context.Context) (<-chan *linemux.Message, error) {
	ch := make(chan *linemux.Message, 256)

	go func() {
		defer close(ch)

		for {
			_, data, err := w.conn.ReadMessage()
			if err != nil {
				select {
				case <-w.closed:
					return
				default:
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				select {
				case ch <- &linemux.Message{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case ch <- &linemux.Message{Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (w *webSocketChannel) Write(ctx context.Context, data []byte) error {
	w.writeLock.Lock()
	defer w.writeLock.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		w.conn.SetWriteDeadline(deadline)
	} else {
		w.conn.SetWriteDeadline(time.Time{})
	}

	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write websocket frame: %w", err)
	}
	return nil
}

func (w *webSocketChannel) Close() error {
	w.once.Do(func() {
		close(w.closed)
		// Best effort: the peer may already be gone.
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = w.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		w.closeErr = w.conn.Close()
	})
	return w.closeErr
}
