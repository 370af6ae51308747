// Package main provides the queryrunner CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/queryrunner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
