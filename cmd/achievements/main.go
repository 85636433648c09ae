// Command achievements evaluates achievement rules for recorded workouts.
//
// Run "achievements serve" for the HTTP event endpoint or "achievements --help"
// for the operator commands.
package main

import (
	"os"

	"github.com/roach88/achievements/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
