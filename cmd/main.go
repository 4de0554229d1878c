package main

import (
	"os"

	"github.com/gitucha/BrainFuel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
