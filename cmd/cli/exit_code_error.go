package cli

import "fmt"

const exitCodeErrorTemplateConstant = "process exited with code %d"

// ExitCodeError carries a child's non-zero exit code to the process entrypoint.
type ExitCodeError struct {
	Code int
}

// Error describes the exit code.
func (exitCodeError ExitCodeError) Error() string {
	return fmt.Sprintf(exitCodeErrorTemplateConstant, exitCodeError.Code)
}
