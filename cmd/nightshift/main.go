package main

import (
	"os"

	"github.com/nightshift-labs/nightshift/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
