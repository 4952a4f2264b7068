// Package main is the entry point for the murmur CLI.
package main

import (
	"os"

	"github.com/murmurnotes/murmur/cmd/murmur/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
