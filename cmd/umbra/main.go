package main

import (
	"fmt"
	"os"

	"umbra/cmd/umbra/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
