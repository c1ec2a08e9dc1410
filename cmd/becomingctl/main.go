package main

import (
	"fmt"
	"os"

	"becoming/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "becomingctl:", err)
		os.Exit(1)
	}
}
