package main

import (
	"os"

	"github.com/pearsonlabs/factorpipe/cmd/factorpipe/commands"
)

// main is the entry point for the factorpipe CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
