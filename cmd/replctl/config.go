package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/snowmerak/repl.go/lib/ident"
	"github.com/snowmerak/repl.go/lib/logging"
	"github.com/snowmerak/repl.go/lib/process"
	"github.com/snowmerak/repl.go/lib/repl"
)

const (
	transportWebSocket = "websocket"
	transportTCP       = "tcp"
	transportUnix      = "unix"
	transportProcess   = "process"

	idFormatUUID    = "uuid"
	idFormatCompact = "compact"
)

// clientConfig is the resolved replctl configuration.
type clientConfig struct {
	Transport        string
	URL              string
	Address          string
	Socket           string
	Process          process.Config
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PendingTTL       time.Duration
	Namespace        string
	IDFormat         string
	LogLevel         zerolog.Level
}

type fileConfig struct {
	Transport        string   `toml:"transport"`
	URL              string   `toml:"url"`
	Host             string   `toml:"host"`
	Port             string   `toml:"port"`
	Address          string   `toml:"address"`
	Socket           string   `toml:"socket"`
	ProcessPath      string   `toml:"process_path"`
	ProcessArgs      []string `toml:"process_args"`
	ProcessDir       string   `toml:"process_dir"`
	HandshakeTimeout string   `toml:"handshake_timeout"`
	WriteTimeout     string   `toml:"write_timeout"`
	PendingTTL       string   `toml:"pending_ttl"`
	Namespace        string   `toml:"namespace"`
	IDFormat         string   `toml:"id_format"`
	LogLevel         string   `toml:"log_level"`
}

func defaultClientConfig() clientConfig {
	opts := repl.DefaultOptions()
	return clientConfig{
		Transport:        transportWebSocket,
		URL:              repl.WebSocketURL("localhost", "9630"),
		HandshakeTimeout: opts.HandshakeTimeout,
		WriteTimeout:     opts.WriteTimeout,
		Namespace:        opts.InitialNamespace,
		IDFormat:         idFormatUUID,
		LogLevel:         zerolog.InfoLevel,
	}
}

func loadClientConfig(path string) (clientConfig, error) {
	cfg := defaultClientConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return clientConfig{}, fmt.Errorf("load replctl config: %w", err)
	}

	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}

	if meta.IsDefined("url") {
		cfg.URL = strings.TrimSpace(raw.URL)
	} else if meta.IsDefined("host") || meta.IsDefined("port") {
		host := strings.TrimSpace(raw.Host)
		if host == "" {
			host = "localhost"
		}
		cfg.URL = repl.WebSocketURL(host, strings.TrimSpace(raw.Port))
	}

	if meta.IsDefined("address") {
		cfg.Address = strings.TrimSpace(raw.Address)
	}

	if meta.IsDefined("socket") {
		cfg.Socket = strings.TrimSpace(raw.Socket)
	}

	if meta.IsDefined("process_path") {
		cfg.Process.Path = strings.TrimSpace(raw.ProcessPath)
	}

	if meta.IsDefined("process_args") {
		cfg.Process.Args = raw.ProcessArgs
	}

	if meta.IsDefined("process_dir") {
		cfg.Process.Dir = strings.TrimSpace(raw.ProcessDir)
	}

	if meta.IsDefined("handshake_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.HandshakeTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse handshake_timeout: %w", err)
		}
		cfg.HandshakeTimeout = d
	}

	if meta.IsDefined("write_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.WriteTimeout))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse write_timeout: %w", err)
		}
		cfg.WriteTimeout = d
	}

	if meta.IsDefined("pending_ttl") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.PendingTTL))
		if err != nil {
			return clientConfig{}, fmt.Errorf("parse pending_ttl: %w", err)
		}
		cfg.PendingTTL = d
	}

	if meta.IsDefined("namespace") {
		if ns := strings.TrimSpace(raw.Namespace); ns != "" {
			cfg.Namespace = ns
		}
	}

	if meta.IsDefined("id_format") {
		cfg.IDFormat = strings.ToLower(strings.TrimSpace(raw.IDFormat))
	}

	if meta.IsDefined("log_level") {
		level, ok := logging.ParseLevel(raw.LogLevel)
		if !ok {
			return clientConfig{}, fmt.Errorf("parse log_level: unknown level %q", raw.LogLevel)
		}
		cfg.LogLevel = level
	}

	return cfg, nil
}

// options turns the configuration into client options for the selected transport.
func (c clientConfig) options() (*repl.Options, error) {
	var opts *repl.Options
	switch c.Transport {
	case transportWebSocket:
		if c.URL == "" {
			return nil, fmt.Errorf("transport %s needs url or host/port", c.Transport)
		}
		opts = repl.WithWebSocket(repl.WebSocketConfig{URL: c.URL})
	case transportTCP:
		if c.Address == "" {
			return nil, fmt.Errorf("transport %s needs address", c.Transport)
		}
		opts = repl.WithTCP(c.Address)
	case transportUnix:
		if c.Socket == "" {
			return nil, fmt.Errorf("transport %s needs socket", c.Transport)
		}
		opts = repl.WithUnixSocket(c.Socket)
	case transportProcess:
		if c.Process.Path == "" {
			return nil, fmt.Errorf("transport %s needs process_path", c.Transport)
		}
		opts = repl.WithProcess(c.Process)
	default:
		return nil, fmt.Errorf("unknown transport %q", c.Transport)
	}

	switch c.IDFormat {
	case idFormatUUID, "":
		opts.IDs = ident.UUID()
	case idFormatCompact:
		opts.IDs = ident.Compact()
	default:
		return nil, fmt.Errorf("unknown id_format %q", c.IDFormat)
	}

	opts.HandshakeTimeout = c.HandshakeTimeout
	opts.WriteTimeout = c.WriteTimeout
	opts.PendingTTL = c.PendingTTL
	opts.InitialNamespace = c.Namespace
	return opts, nil
}
