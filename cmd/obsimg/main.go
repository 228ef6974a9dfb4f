package main

import (
	"os"

	cmd "github.com/obsimg/obsimg/internal"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
