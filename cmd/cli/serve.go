package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/temirov/binrunner/internal/bridge"
)

const (
	serveCommandUseConstant              = "serve"
	serveCommandShortDescriptionConstant = "Serve run and stop calls as JSON lines on stdin and stdout"
	serveCommandLongDescriptionConstant  = `serve reads one JSON request per line from standard input, for example
{"id":1,"method":"runBinary","arguments":{"binaryName":"ls","args":["-l"],"useSu":false,"path":""}}
and writes one JSON response per line to standard output. Calls are handled
concurrently, so {"id":2,"method":"stopBinary"} stops a run that is still in
flight. Logs go to standard error.`
)

// ServeCommandBuilder assembles the serve command.
type ServeCommandBuilder struct {
	SessionFactory        SessionFactory
	SignalContextProvider SignalContextProvider
}

// Build constructs the serve command.
func (builder *ServeCommandBuilder) Build() (*cobra.Command, error) {
	command := &cobra.Command{
		Use:   serveCommandUseConstant,
		Short: serveCommandShortDescriptionConstant,
		Long:  serveCommandLongDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE:  builder.run,
	}
	return command, nil
}

func (builder *ServeCommandBuilder) run(command *cobra.Command, _ []string) error {
	builder.SessionFactory.LogCommandConfiguration(command.Context(), command.Name())
	session, sessionError := builder.SessionFactory.NewSession(command.Context())
	if sessionError != nil {
		return sessionError
	}

	logger := builder.SessionFactory.Logger(command.Context())
	dispatcher, dispatcherError := bridge.NewDispatcher(logger, session)
	if dispatcherError != nil {
		return dispatcherError
	}
	server, serverError := bridge.NewServer(logger, dispatcher)
	if serverError != nil {
		return serverError
	}

	executionContext, cancel := deriveSignalContext(builder.SignalContextProvider, command.Context())
	defer cancel()

	serveError := server.Serve(executionContext, command.InOrStdin(), command.OutOrStdout())
	if errors.Is(serveError, context.Canceled) {
		return nil
	}
	return serveError
}
