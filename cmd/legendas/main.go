package main

import (
	"os"

	"github.com/ronaldod-hc/legendas-app/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
