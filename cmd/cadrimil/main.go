// Package main is the entry point for the cadrimil CLI.
package main

import (
	"os"

	"github.com/cadrimil/engine/cmd/cadrimil/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
