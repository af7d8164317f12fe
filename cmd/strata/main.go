package main

import (
	"fmt"
	"os"

	"github.com/marmos91/strata/cmd/strata/commands"

	// Registers the Prometheus constructors for pkg/metrics's storage.Metrics
	// factories via its init function.
	_ "github.com/marmos91/strata/pkg/metrics/prometheus"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
