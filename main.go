package main

import (
	"os"

	"github.com/hkhalifa/versemind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
