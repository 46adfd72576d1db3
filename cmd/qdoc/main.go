package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/kobzarvs/qdoc/internal/app"
)

func main() {
	args := os.Args[1:]
	if len(args) > 0 && args[0] == "--" {
		args = args[1:]
	}
	if err := app.New(args).Run(); err != nil {
		if errors.Is(err, app.ErrUsage) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "qdoc:", err)
		os.Exit(1)
	}
}
