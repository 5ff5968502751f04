package runtimeinit

import (
	"context"
	"fmt"
	"log"
	"time"

	"yv-capture/src/clipboard"
	"yv-capture/src/config"
	"yv-capture/src/cutout"
	"yv-capture/src/orchestrator"
)

const pingTimeout = 3 * time.Second

type Options struct {
	LoadOptions  config.LoadOptions
	SetupLogging func(bool)
	// PingCutout checks the cutout service at startup. A failure is logged,
	// not fatal: captures still preview and apply without cutout until it is up.
	PingCutout bool
}

// Bootstrap loads configuration, sets up logging and prepares the optional
// clipboard integration. CopyOnApply is switched off when the clipboard
// cannot be initialized.
func Bootstrap(opts Options) (*config.Config, error) {
	cfg, err := config.LoadWithOptions(opts.LoadOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.SetupLogging != nil {
		opts.SetupLogging(cfg.EnableFileLogging)
	}

	if cfg.CopyOnApply {
		if err := clipboard.Init(); err != nil {
			log.Printf("Clipboard unavailable, COPY_ON_APPLY disabled: %v", err)
			cfg.CopyOnApply = false
		}
	}

	if opts.PingCutout {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()
		if err := NewCutter(cfg).Ping(ctx); err != nil {
			log.Printf("Cutout service check failed: %v", err)
		} else {
			log.Printf("Cutout service reachable at %s", cfg.CutoutEndpoint)
		}
	}

	return cfg, nil
}

// NewCutter builds the cutout client from configuration.
func NewCutter(cfg *config.Config) *cutout.Client {
	return cutout.New(cutout.Config{
		Endpoint: cfg.CutoutEndpoint,
		Timeout:  time.Duration(cfg.CutoutTimeoutSec) * time.Second,
		Retries:  1,
	})
}

// NewFetcher builds the credential-free image fetcher from configuration.
func NewFetcher(cfg *config.Config) *orchestrator.Fetcher {
	return orchestrator.NewFetcher(orchestrator.FetcherConfig{MaxBytes: cfg.FetchMaxBytes})
}
