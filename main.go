package main

import (
	"os"

	"github.com/Solana-ZH/orcacpi/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
