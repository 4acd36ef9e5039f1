// Package main provides the entry point for the bcf CLI.
package main

import (
	"os"

	"github.com/randalmurphal/bimcollab/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
