// Package main is the entry point for the parler CLI.
package main

import (
	"os"

	"github.com/f3rmion/parler/cmd/parler/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
