package main

import (
	"os"

	"github.com/houhuawei23/ai-anki-cards/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
