//go:build windows

package execshell

import "os"

func signalGraceful(process *os.Process) error {
	return process.Signal(os.Interrupt)
}

func signalForceful(process *os.Process) error {
	return process.Kill()
}

func exitCodeFromState(processState *os.ProcessState) int {
	if processState == nil {
		return -1
	}
	return processState.ExitCode()
}
