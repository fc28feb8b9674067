// Package main provides the entry point for the parallax CLI.
package main

import (
	"os"

	"github.com/parallax-rag/parallax/cmd/parallax/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
