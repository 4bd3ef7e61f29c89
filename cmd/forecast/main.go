package main

import (
	"os"

	"SignalCast/cmd/forecast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
