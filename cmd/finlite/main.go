// Package main provides the entry point for the finlite CLI.
package main

import (
	"os"

	"github.com/claracenn/finlite/cmd/finlite/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
