// Package main is the entry point for the transcoder service.
package main

import (
	"os"

	"github.com/eleven-am/transcoder/cmd/transcoder/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
