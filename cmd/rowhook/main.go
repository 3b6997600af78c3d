package main

import (
	"os"

	"github.com/kursadbilgin/rowhook/cmd/rowhook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
