package main

import (
	"os"

	"github.com/Hooolee/novel-splitter/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
