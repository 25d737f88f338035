package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/okian/footprint/internal/simulate"
	"github.com/okian/footprint/pkg/logger"
)

const defaultRunTimeout = 30 * time.Minute

func main() {
	var (
		baseURL  = flag.String("url", "http://localhost:9080", "Base URL of the service")
		visitors = flag.Int("visitors", 50, "Number of visitors to simulate")
		workers  = flag.Int("workers", 8, "Number of concurrent visitors")
		timeout  = flag.Duration("timeout", 10*time.Second, "HTTP request timeout")
		scale    = flag.Float64("scale", 0.01, "Real seconds per simulated second")
		seed     = flag.Uint64("seed", 0, "Plan generator seed, 0 for a random one")
		verbose  = flag.Bool("verbose", false, "Log tracker activity")
		help     = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulate.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	if _, err := simulate.Run(ctx, simulate.Config{
		BaseURL:   *baseURL,
		Visitors:  *visitors,
		Workers:   *workers,
		Timeout:   *timeout,
		TimeScale: *scale,
		Seed:      *seed,
		Verbose:   *verbose,
	}); err != nil {
		os.Stderr.WriteString("simulation failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}
