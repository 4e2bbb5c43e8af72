package main

import (
	"os"

	"github.com/yardeye/go-sentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
