package main

import (
	"os"

	"github.com/strikemap-systems/strikemap/cmd/strikemap/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
