package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/yorozuya-cybersecurity/auditfix/pkg/cli"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "auditfix panic: %v\n\n%s\n", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cli.Execute()
}
