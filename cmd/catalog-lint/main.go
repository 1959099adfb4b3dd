package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/scentshelf/internal/platform/config"
	"github.com/louisbranch/scentshelf/internal/tools/cataloglint"
)

func main() {
	cfg, err := cataloglint.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	if err := cataloglint.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
