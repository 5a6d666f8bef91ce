package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/binrunner/cmd/cli"
)

const (
	exitErrorTemplateConstant = "%v\n"
	genericFailureExitCode    = 1
)

// main executes the binrunner command-line application.
func main() {
	executionError := cli.Execute()
	if executionError == nil {
		return
	}

	var exitCodeError cli.ExitCodeError
	if errors.As(executionError, &exitCodeError) {
		os.Exit(exitCodeError.Code)
	}

	fmt.Fprintf(os.Stderr, exitErrorTemplateConstant, executionError)
	os.Exit(genericFailureExitCode)
}
