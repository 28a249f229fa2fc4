// Package main is the entry point for the reelsmith application.
package main

import (
	"os"

	"github.com/reelsmith/reelsmith/cmd/reelsmith/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
