package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/jku/repository-playground/internal/cmd/root"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "unexpected error: %s\n\n", fmt.Sprint(r))
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	rootCmd := root.New()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1) //nolint:gocritic
	}
}
