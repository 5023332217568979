package main

import (
	"fmt"
	"os"

	"github.com/ErebusAres/DriftShell-sub000/internal/tui"
)

func main() {
	if err := tui.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "driftshell: %v\n", err)
		os.Exit(1)
	}
}
