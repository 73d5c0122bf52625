// Package main provides the entry point for the websearch CLI.
package main

import (
	"fmt"
	"os"

	"websearch/cmd/websearch/cmd"
	apperr "websearch/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apperr.IsKind(err, apperr.KindInvalidInput) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}
