package main

import (
	"os"

	"github.com/devlinkio/devlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
