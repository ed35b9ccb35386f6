package main

import (
	"os"

	"vesper/cmd/vesper/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
