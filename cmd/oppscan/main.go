package main

import (
	"os"

	"github.com/quantgrid/oppscan/cmd/oppscan/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
