package main

import (
	"os"

	"github.com/noah-isme/schedulus-api/cmd/schedulusctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
