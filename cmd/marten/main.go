package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/apereiratl/marten/internal/cli"
	"github.com/apereiratl/marten/pkg/marten"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(marten.ExitPanic)
		}
	}()

	if os.Getenv("MARTEN_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(marten.ExitCodeForError(err))
	}
}
