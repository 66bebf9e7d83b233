package main

import (
	"os"

	"github.com/zaqqye/defense_backend_v1/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
