// Package main is the entry point for the retailmetrics CLI binary.
package main

import (
	"os"

	cli "retailmetrics/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
