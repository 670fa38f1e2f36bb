package main

import (
	"os"

	"github.com/tally-books/tally/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
