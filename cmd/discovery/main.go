package main

import (
	"os"

	"github.com/cryptouniverse/discovery/cmd/discovery/commands"
)

// main is the entry point for the discovery CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/discovery [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
