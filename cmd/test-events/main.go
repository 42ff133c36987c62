package main

import (
	"fmt"
	"os"

	"github.com/okian/gamebot/internal/testevents"
)

func main() {
	if err := testevents.NewCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "test failed:", err)
		os.Exit(1)
	}
}
