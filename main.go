package main

import (
	"fmt"
	"os"

	"github.com/tyemirov/actions-timing/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the actions-timing command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
