// Command oda-agent is the thin CLI front-end over the runtime in
// internal/oda: booting a Context, driving config CRUD, and running a
// scripted demo against the in-memory fault-injecting engine fake.
// Explicitly out of core scope (spec.md §1) but part of a complete repo.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

var (
	red = color.New(color.FgRed).SprintFunc()
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}
