// Command trajectory extracts and analyses rodent nose trajectories.
package main

import (
	"fmt"
	"os"

	"github.com/banshee-data/trajectory.report/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
