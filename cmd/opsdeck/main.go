package main

import (
	"fmt"
	"os"
)

// cmd/opsdeck/main.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
