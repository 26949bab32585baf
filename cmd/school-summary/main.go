package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/oto-macenauer/school-summary/internal/bootstrap"
	"github.com/oto-macenauer/school-summary/internal/platform/config"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the configuration file")
	flag.Parse()

	if err := bootstrap.Run(context.Background(), bootstrap.Options{ConfigPath: *configPath}); err != nil {
		fmt.Fprintf(os.Stderr, "school-summary failed: %v\n", err)
		os.Exit(1)
	}
}
