package execshell

// CommandEventObserver receives lifecycle notifications for session runs.
type CommandEventObserver interface {
	// CommandStarted notifies observers that the child process has started.
	CommandStarted(command ResolvedCommand)
	// CommandCompleted notifies observers that the run finished and supplies the result.
	CommandCompleted(command ResolvedCommand, result RunResult)
	// CommandExecutionFailed reports failures that prevented the child from starting.
	CommandExecutionFailed(command ResolvedCommand, failure error)
	// CommandStopRequested notifies observers that termination of the child was initiated.
	CommandStopRequested(command ResolvedCommand)
}

// noopCommandEventObserver discards all command events.
type noopCommandEventObserver struct{}

// CommandStarted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandStarted(ResolvedCommand) {}

// CommandCompleted implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandCompleted(ResolvedCommand, RunResult) {}

// CommandExecutionFailed implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandExecutionFailed(ResolvedCommand, error) {}

// CommandStopRequested implements CommandEventObserver for the no-op observer.
func (noopCommandEventObserver) CommandStopRequested(ResolvedCommand) {}
