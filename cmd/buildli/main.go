package main

import (
	"os"

	"github.com/haasonsaas/buildli/cmd/buildli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
