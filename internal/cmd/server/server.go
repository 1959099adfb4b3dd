// Package server parses delivery server flags and launches the service.
package server

import (
	"context"
	"flag"
	"fmt"

	entrypoint "github.com/louisbranch/scentshelf/internal/platform/cmd"
	"github.com/louisbranch/scentshelf/internal/services/delivery"
)

// Config holds the delivery server configuration.
type Config struct {
	Port      int    `env:"SCENTSHELF_PORT" envDefault:"5000"`
	AssetRoot string `env:"SCENTSHELF_ASSET_ROOT" envDefault:"."`
	Preload   bool   `env:"SCENTSHELF_PRELOAD"`
}

// ParseConfig loads environment configuration and applies flag overrides.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "TCP port the delivery server listens on")
	fs.StringVar(&cfg.AssetRoot, "asset-root", cfg.AssetRoot, "Directory containing the built catalog bundle")
	fs.BoolVar(&cfg.Preload, "preload", cfg.Preload, "Load catalog assets into memory at startup")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the delivery server and blocks until ctx is cancelled or the
// listener fails.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceServer, func(context.Context) error {
		srv, err := delivery.NewServer(ctx, delivery.Config{
			HTTPAddr:  fmt.Sprintf(":%d", cfg.Port),
			AssetRoot: cfg.AssetRoot,
			Preload:   cfg.Preload,
		})
		if err != nil {
			return err
		}
		defer srv.Close()
		return srv.ListenAndServe(ctx)
	})
}
