//go:build !windows

package execshell

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

const signalExitCodeOffsetConstant = 128

func signalGraceful(process *os.Process) error {
	return process.Signal(unix.SIGTERM)
}

func signalForceful(process *os.Process) error {
	return process.Signal(unix.SIGKILL)
}

// exitCodeFromState reports the exit status, mapping signal termination to 128+signal.
func exitCodeFromState(processState *os.ProcessState) int {
	if processState == nil {
		return -1
	}
	if waitStatus, isWaitStatus := processState.Sys().(syscall.WaitStatus); isWaitStatus && waitStatus.Signaled() {
		return signalExitCodeOffsetConstant + int(waitStatus.Signal())
	}
	return processState.ExitCode()
}
