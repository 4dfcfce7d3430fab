// Package main provides the entry point for the stratum service.
package main

import (
	"os"

	"github.com/manak-ai/stratum/cmd/stratum/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
