package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/binrunner/internal/execshell"
)

const (
	resolveCommandUseConstant              = "resolve [--path DIR] <binary>"
	resolveCommandShortDescriptionConstant = "Print the path binrunner would execute for a binary"
	resolveCommandLongDescriptionConstant  = "resolve applies the same lookup as run: <path>/<binary> when --path is given, otherwise the first executable match in the configured search directories, otherwise the bare name."
	resolvePathFlagNameConstant            = "path"
	resolvePathFlagUsageConstant           = "Directory containing the binary."
)

// ResolveCommandBuilder assembles the resolve command.
type ResolveCommandBuilder struct {
	SessionFactory SessionFactory
}

// Build constructs the resolve command.
func (builder *ResolveCommandBuilder) Build() (*cobra.Command, error) {
	var pathHint string
	command := &cobra.Command{
		Use:   resolveCommandUseConstant,
		Short: resolveCommandShortDescriptionConstant,
		Long:  resolveCommandLongDescriptionConstant,
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, arguments []string) error {
			binaryName := strings.TrimSpace(arguments[0])
			if len(binaryName) == 0 {
				return execshell.ArgumentError{Cause: execshell.ErrBinaryNameRequired}
			}

			builder.SessionFactory.LogCommandConfiguration(command.Context(), command.Name())
			resolver, resolverError := builder.SessionFactory.NewResolver(command.Context())
			if resolverError != nil {
				return resolverError
			}

			_, printError := fmt.Fprintln(command.OutOrStdout(), resolver.Resolve(pathHint, binaryName))
			return printError
		},
	}
	command.Flags().StringVar(&pathHint, resolvePathFlagNameConstant, "", resolvePathFlagUsageConstant)

	return command, nil
}
