// Command deltaspread analyzes multi-leg options strategies.
package main

import (
	"fmt"
	"os"

	"delta-spread/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
