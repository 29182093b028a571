package repl

import (
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/snowmerak/repl.go/lib/ident"
	"github.com/snowmerak/repl.go/lib/process"
)

// DefaultNamespace is the namespace reported before any value frame arrives.
const DefaultNamespace = "user"

// Options defines how a Client connects and reports.
type Options struct {
	// Provider opens the transport channel
	Provider Provider

	// Observer receives evaluation notifications (default: NopObserver)
	Observer Observer

	// IDs generates request identifiers (default: ident.UUID())
	IDs ident.Source

	// Logger receives protocol diagnostics (default: disabled)
	Logger *zerolog.Logger

	// HandshakeTimeout bounds the wait for new-session (default: 10s)
	HandshakeTimeout time.Duration

	// WriteTimeout bounds a single frame write when the caller's context has no deadline (default: 5s)
	WriteTimeout time.Duration

	// PendingTTL expires registry entries older than this. Zero keeps them until their terminal frame.
	PendingTTL time.Duration

	// SweepInterval is how often expiry runs when PendingTTL is set (default: PendingTTL/2)
	SweepInterval time.Duration

	// InitialNamespace seeds CurrentNamespace (default: "user")
	InitialNamespace string
}

// DefaultOptions returns options with every default filled in and no provider.
func DefaultOptions() *Options {
	return &Options{
		Observer:         NopObserver{},
		IDs:              ident.UUID(),
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		InitialNamespace: DefaultNamespace,
	}
}

// WithProvider creates options using the given provider.
func WithProvider(provider Provider) *Options {
	opts := DefaultOptions()
	opts.Provider = provider
	return opts
}

// WithWebSocket creates options for a websocket connection.
func WithWebSocket(config WebSocketConfig) *Options {
	return WithProvider(NewWebSocketProvider(config))
}

// WithStream creates options for line-delimited frames over an existing reader/writer pair.
func WithStream(reader io.Reader, writer io.Writer) *Options {
	return WithProvider(&StreamProvider{Reader: reader, Writer: writer})
}

// WithUnixSocket creates options for line-delimited frames over a unix domain socket.
func WithUnixSocket(socketPath string) *Options {
	return WithProvider(NewNetProvider("unix", socketPath))
}

// WithTCP creates options for line-delimited frames over TCP.
func WithTCP(address string) *Options {
	return WithProvider(NewNetProvider("tcp", address))
}

// WithProcess creates options that start a bridge process and talk over its stdio.
func WithProcess(config process.Config) *Options {
	return WithProvider(&ProcessProvider{Config: config})
}

// normalize fills zero fields with defaults.
func (o *Options) normalize() {
	def := DefaultOptions()
	if o.Observer == nil {
		o.Observer = def.Observer
	}
	if o.IDs == nil {
		o.IDs = def.IDs
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = def.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.PendingTTL > 0 && o.SweepInterval <= 0 {
		o.SweepInterval = o.PendingTTL / 2
	}
	if o.InitialNamespace == "" {
		o.InitialNamespace = def.InitialNamespace
	}
}
