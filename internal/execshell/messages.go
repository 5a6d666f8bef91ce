package execshell

import (
	"fmt"
	"strings"
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	genericStoppedTemplateConstant          = "Stopped %s (exit code %d)"
	genericStopRequestedTemplateConstant    = "Stopping %s"
	elevatedLabelSuffixConstant             = " (elevated)"
	standardErrorSuffixTemplateConstant     = ": %s"
	unknownFailureMessageConstant           = "unknown error"
	unknownCommandLabelConstant             = "command"
	emptyStringConstant                     = ""
)

// CommandMessageFormatter renders human-readable descriptions of run lifecycle events.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ResolvedCommand) string {
	return fmt.Sprintf(genericStartTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildCompletionMessage describes a finished run, distinguishing success, failure, and stop.
func (formatter CommandMessageFormatter) BuildCompletionMessage(command ResolvedCommand, result RunResult) string {
	commandLabel := formatter.formatCommandLabel(command)
	switch {
	case result.Stopped:
		return fmt.Sprintf(genericStoppedTemplateConstant, commandLabel, result.ExitCode)
	case result.ExitCode == 0:
		return fmt.Sprintf(genericSuccessTemplateConstant, commandLabel)
	default:
		return fmt.Sprintf(genericFailureTemplateConstant, commandLabel, result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
	}
}

// BuildExecutionFailureMessage describes a run that could not be started.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ResolvedCommand, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	return fmt.Sprintf(genericExecutionFailureTemplateConstant, formatter.formatCommandLabel(command), failureMessage)
}

// BuildStopRequestedMessage describes a termination request.
func (formatter CommandMessageFormatter) BuildStopRequestedMessage(command ResolvedCommand) string {
	return fmt.Sprintf(genericStopRequestedTemplateConstant, formatter.formatCommandLabel(command))
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ResolvedCommand) string {
	commandLabel := strings.TrimSpace(command.DisplayCommand)
	if len(commandLabel) == 0 {
		commandLabel = unknownCommandLabelConstant
	}
	if command.Elevated {
		return commandLabel + elevatedLabelSuffixConstant
	}
	return commandLabel
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}
