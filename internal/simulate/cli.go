package simulate

import "os"

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	os.Stdout.WriteString(`Footprint Visitor Simulator
===========================

Drives synthetic visitors through the tracker SDK against a running
journeys API, then checks the dashboard totals and CSV export.

Usage:
  go run ./cmd/simulate [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -visitors int
        Number of visitors to simulate (default 50)
  -workers int
        Number of concurrent visitors (default 8)
  -timeout duration
        HTTP request timeout (default 10s)
  -scale float
        Real seconds per simulated second (default 0.01)
  -seed uint
        Plan generator seed, 0 for a random one
  -verbose
        Log tracker activity
  -help
        Show this help message

Examples:
  # 200 visitors at 1/100 speed
  go run ./cmd/simulate -visitors 200

  # Replay a run against a staging deployment
  go run ./cmd/simulate -url https://footprint.example -seed 42
`)
}
