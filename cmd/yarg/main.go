package main

import (
	"fmt"
	"os"

	"github.com/gitsby/yarg/pkg/runtime/terminal"
	"github.com/joho/godotenv"
)

func main() {
	// YARG_* settings may come from a local .env file
	_ = godotenv.Load()

	cli := terminal.NewCLI(terminal.Options{
		Output: os.Stdout,
		Logs:   os.Stderr,
	})

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
