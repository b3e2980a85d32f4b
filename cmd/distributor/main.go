package main

import (
	"os"

	"github.com/spec-kit/lead-distribution/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
