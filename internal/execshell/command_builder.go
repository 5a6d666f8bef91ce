package execshell

import "strings"

const (
	// DefaultElevationBinary is the privilege-elevation wrapper used when none is configured.
	DefaultElevationBinary = "su"

	elevationCommandFlagConstant = "-c"
	commandPartSeparatorConstant = " "
	singleQuoteConstant          = "'"
	escapedSingleQuoteConstant   = `'\''`
)

// QuoteShellArgument wraps argument in single quotes so a POSIX shell reads it back verbatim.
func QuoteShellArgument(argument string) string {
	return singleQuoteConstant + strings.ReplaceAll(argument, singleQuoteConstant, escapedSingleQuoteConstant) + singleQuoteConstant
}

// BuildCommand produces the argument vector for executablePath and arguments.
//
// Without elevation the vector is passed to the operating system verbatim. With
// elevation the quoted command line is handed to elevationBinary via -c.
func BuildCommand(executablePath string, arguments []string, useElevation bool, elevationBinary string) ResolvedCommand {
	displayParts := make([]string, 0, len(arguments)+1)
	displayParts = append(displayParts, executablePath)
	displayParts = append(displayParts, arguments...)
	displayCommand := strings.Join(displayParts, commandPartSeparatorConstant)

	if !useElevation {
		return ResolvedCommand{
			Arguments:      append([]string{executablePath}, arguments...),
			DisplayCommand: displayCommand,
		}
	}

	wrapper := strings.TrimSpace(elevationBinary)
	if len(wrapper) == 0 {
		wrapper = DefaultElevationBinary
	}

	return ResolvedCommand{
		Arguments:      []string{wrapper, elevationCommandFlagConstant, BuildElevatedCommandLine(executablePath, arguments)},
		DisplayCommand: displayCommand,
		Elevated:       true,
	}
}

// BuildElevatedCommandLine quotes the executable path and every argument and joins them with spaces.
func BuildElevatedCommandLine(executablePath string, arguments []string) string {
	quotedParts := make([]string, 0, len(arguments)+1)
	quotedParts = append(quotedParts, QuoteShellArgument(executablePath))
	for _, argument := range arguments {
		quotedParts = append(quotedParts, QuoteShellArgument(argument))
	}
	return strings.Join(quotedParts, commandPartSeparatorConstant)
}
