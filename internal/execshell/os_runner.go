package execshell

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

const (
	emptyArgumentVectorMessageConstant      = "empty argument vector"
	standardOutputPipeErrorTemplateConstant = "unable to create stdout pipe: %w"
	standardErrorPipeErrorTemplateConstant  = "unable to create stderr pipe: %w"
)

var errEmptyArgumentVector = errors.New(emptyArgumentVectorMessageConstant)

// runningProcess is the session slot payload: one started child and its pipes.
type runningProcess struct {
	runID                string
	command              ResolvedCommand
	executable           *exec.Cmd
	standardOutputReader *os.File
	standardErrorReader  *os.File
	exited               chan struct{}
	stopClaimed          atomic.Bool
	terminationSent      atomic.Bool
	closeReadersOnce     sync.Once
	scheduleCloseOnce    sync.Once
}

// launchProcess starts command with independent stdout and stderr pipes.
// The child inherits only the write ends; the parent keeps the read ends.
func launchProcess(command ResolvedCommand, workingDirectory string) (*runningProcess, error) {
	if len(command.Arguments) == 0 {
		return nil, errEmptyArgumentVector
	}

	standardOutputReader, standardOutputWriter, standardOutputPipeError := os.Pipe()
	if standardOutputPipeError != nil {
		return nil, fmt.Errorf(standardOutputPipeErrorTemplateConstant, standardOutputPipeError)
	}
	standardErrorReader, standardErrorWriter, standardErrorPipeError := os.Pipe()
	if standardErrorPipeError != nil {
		_ = standardOutputReader.Close()
		_ = standardOutputWriter.Close()
		return nil, fmt.Errorf(standardErrorPipeErrorTemplateConstant, standardErrorPipeError)
	}

	executable := exec.Command(command.Arguments[0], command.Arguments[1:]...)
	if len(workingDirectory) > 0 {
		executable.Dir = workingDirectory
	}
	executable.Stdout = standardOutputWriter
	executable.Stderr = standardErrorWriter

	startError := executable.Start()
	_ = standardOutputWriter.Close()
	_ = standardErrorWriter.Close()
	if startError != nil {
		_ = standardOutputReader.Close()
		_ = standardErrorReader.Close()
		return nil, startError
	}

	return &runningProcess{
		command:              command,
		executable:           executable,
		standardOutputReader: standardOutputReader,
		standardErrorReader:  standardErrorReader,
		exited:               make(chan struct{}),
	}, nil
}

func (child *runningProcess) process() *os.Process {
	return child.executable.Process
}

func (child *runningProcess) pid() int {
	if child.executable.Process == nil {
		return 0
	}
	return child.executable.Process.Pid
}

// wait blocks until the child exits and marks it as no longer alive.
func (child *runningProcess) wait() {
	_ = child.executable.Wait()
	close(child.exited)
}

func (child *runningProcess) alive() bool {
	select {
	case <-child.exited:
		return false
	default:
		return true
	}
}

func (child *runningProcess) exitCode() int {
	return exitCodeFromState(child.executable.ProcessState)
}

// closeReaders interrupts any drain still blocked on the pipes.
func (child *runningProcess) closeReaders() {
	child.closeReadersOnce.Do(func() {
		_ = child.standardOutputReader.Close()
		_ = child.standardErrorReader.Close()
	})
}

// scheduleReaderClose closes the pipes after linger once the child has exited,
// so descendants that inherited the pipes cannot keep the drains alive.
func (child *runningProcess) scheduleReaderClose(linger time.Duration) {
	child.scheduleCloseOnce.Do(func() {
		go func() {
			<-child.exited
			time.Sleep(linger)
			child.closeReaders()
		}()
	})
}
