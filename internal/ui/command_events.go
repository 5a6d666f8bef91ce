package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/execshell"
)

// ConsoleCommandEventLogger renders process lifecycle events using a zap logger configured for human-readable output.
type ConsoleCommandEventLogger struct {
	logger    *zap.Logger
	formatter execshell.CommandMessageFormatter
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
}

// CommandStarted implements execshell.CommandEventObserver by logging process start notifications.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ResolvedCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver. Stopped and failed runs are logged as warnings.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ResolvedCommand, result execshell.RunResult) {
	if eventLogger == nil {
		return
	}
	message := eventLogger.formatter.BuildCompletionMessage(command, result)
	if result.ExitCode == 0 && !result.Stopped {
		eventLogger.logger.Info(message)
		return
	}
	eventLogger.logger.Warn(message)
}

// CommandExecutionFailed implements execshell.CommandEventObserver by logging start failures.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ResolvedCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}

// CommandStopRequested implements execshell.CommandEventObserver.
func (eventLogger *ConsoleCommandEventLogger) CommandStopRequested(command execshell.ResolvedCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStopRequestedMessage(command))
}
