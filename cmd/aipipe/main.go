// Aipipe is an authenticating, cost-metering reverse proxy fronting
// OpenAI, OpenRouter, and Gemini-shaped LLM APIs, plus an embedding
// similarity engine.
package main

import (
	"fmt"
	"os"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-version" {
		fmt.Println("aipipe", version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
