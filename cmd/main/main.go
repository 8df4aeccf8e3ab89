package main

import (
	"os"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		describeError(os.Stderr, err)
		os.Exit(1)
	}
}
