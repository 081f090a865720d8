package main

import (
	"os"

	"github.com/run-bigpig/roundtable/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
