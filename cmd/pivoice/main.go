package main

import (
	"os"

	"github.com/iabetor/pivoice/cmd/pivoice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
