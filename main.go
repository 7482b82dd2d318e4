package main

import (
	"fmt"
	"os"

	"github.com/tyemirov/buildtask/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
)

// main executes the buildtask command-line application.
func main() {
	if executionError := cli.Execute(); executionError != nil {
		fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
		os.Exit(1)
	}
}
