package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/snowmerak/repl.go/lib/logging"
	"github.com/snowmerak/repl.go/lib/repl"
)

func main() {
	configPath := flag.String("config", "cmd/replctl/ex.config.toml", "path to replctl TOML config")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "replctl: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := loadClientConfig(configPath)
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig(logging.ProfileRuntime)
	logCfg.Level = cfg.LogLevel
	logging.ApplyEnvOverrides(&logCfg)
	logger := logging.NewWithConfig("replctl", os.Stderr, logCfg)

	opts, err := cfg.options()
	if err != nil {
		return err
	}

	p := newPrinter(os.Stdout)
	opts.Observer = p
	opts.Logger = &logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := repl.Dial(ctx, opts)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.Info().Str("transport", cfg.Transport).Str("namespace", client.CurrentNamespace()).Msg("connected")

	s := &session{client: client, printer: p}
	return s.run(ctx, os.Stdin)
}
