package main

import (
	"os"

	"github.com/yukimemi/spyrun/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
