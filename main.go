package main

import (
	"os"

	"github.com/deepreview/socratic/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
