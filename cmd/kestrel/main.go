package main

import (
	"os"

	"github.com/kestrel-xr/kestrel/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
