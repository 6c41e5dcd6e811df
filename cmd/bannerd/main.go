// Package main is the entry point for the bannerd application.
package main

import (
	"os"

	"github.com/openhood/bannerd/cmd/bannerd/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
