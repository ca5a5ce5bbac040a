package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/subagents/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "subagents:", err)
		os.Exit(1)
	}
}
