package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/binrunner/internal/execshell"
	flagutils "github.com/temirov/binrunner/internal/utils/flags"
)

const (
	runCommandUseConstant              = "run [flags] [--] <binary> [arguments...]"
	runCommandShortDescriptionConstant = "Run an executable and report its output and exit code"
	runCommandLongDescriptionConstant  = "run resolves the binary in the configured search directories (or in --path), starts it with the given arguments, optionally through su -c, collects stdout and stderr, and exits with the child's exit code. Interrupting binrunner stops the child: SIGTERM first, SIGKILL after the grace period."
	runCommandExampleConstant          = "binrunner run --su toybox ls -l /data\nbinrunner run --path /data/local/tmp --output json mytool --verbose"
	runPathFlagNameConstant            = "path"
	runPathFlagUsageConstant           = "Directory containing the binary; also used as the working directory."
	runElevationFlagNameConstant       = "su"
	runElevationFlagUsageConstant      = "Run the binary through the elevation wrapper (su -c)."
	runOutputFlagNameConstant          = "output"
	runOutputFlagUsageConstant         = "Render the child output as plain text or the full run result as JSON or YAML."
	runRequestFlagNameConstant         = "request"
	runRequestFlagUsageConstant        = "Read the run request from a YAML document; flags and arguments override its fields."
	runOutputTextConstant              = "text"
	runOutputJSONConstant              = "json"
	runOutputYAMLConstant              = "yaml"
	jsonIndentConstant                 = "  "
	yamlIndentConstant                 = 2
	requestReadErrorTemplateConstant   = "unable to read run request %s: %w"
	requestParseErrorTemplateConstant  = "unable to parse run request %s: %w"
	outputRenderErrorTemplateConstant  = "unable to render run result: %w"
)

// RunRequestDocument is the YAML form of a run request accepted by --request.
type RunRequestDocument struct {
	Path         string   `yaml:"path"`
	BinaryName   string   `yaml:"binary"`
	Arguments    []string `yaml:"args"`
	UseElevation bool     `yaml:"use_su"`
}

// SignalContextProvider derives a context cancelled on termination signals.
type SignalContextProvider func(parent context.Context) (context.Context, context.CancelFunc)

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	SessionFactory        SessionFactory
	SignalContextProvider SignalContextProvider
}

type runCommandOptions struct {
	path         string
	useElevation bool
	output       string
	requestFile  string
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	options := &runCommandOptions{}
	command := &cobra.Command{
		Use:     runCommandUseConstant,
		Short:   runCommandShortDescriptionConstant,
		Long:    runCommandLongDescriptionConstant,
		Example: runCommandExampleConstant,
		Args:    cobra.ArbitraryArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, options)
		},
	}

	flagSet := command.Flags()
	flagSet.SetInterspersed(false)
	flagSet.StringVar(&options.path, runPathFlagNameConstant, "", runPathFlagUsageConstant)
	flagSet.BoolVar(&options.useElevation, runElevationFlagNameConstant, false, runElevationFlagUsageConstant)
	flagSet.StringVar(&options.requestFile, runRequestFlagNameConstant, "", runRequestFlagUsageConstant)
	flagutils.AddChoiceFlag(
		flagSet,
		&options.output,
		runOutputFlagNameConstant,
		runOutputTextConstant,
		[]string{runOutputTextConstant, runOutputJSONConstant, runOutputYAMLConstant},
		runOutputFlagUsageConstant,
	)

	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string, options *runCommandOptions) error {
	request, requestError := builder.buildRequest(command, arguments, options)
	if requestError != nil {
		return requestError
	}

	builder.SessionFactory.LogCommandConfiguration(command.Context(), command.Name())
	session, sessionError := builder.SessionFactory.NewSession(command.Context())
	if sessionError != nil {
		return sessionError
	}

	executionContext, cancel := deriveSignalContext(builder.SignalContextProvider, command.Context())
	defer cancel()

	result, runError := session.Run(executionContext, request)
	if runError != nil {
		return runError
	}

	if renderError := renderRunResult(command.OutOrStdout(), command.ErrOrStderr(), options.output, result); renderError != nil {
		return fmt.Errorf(outputRenderErrorTemplateConstant, renderError)
	}

	if result.ExitCode != 0 {
		return ExitCodeError{Code: result.ExitCode}
	}
	return nil
}

func (builder *RunCommandBuilder) buildRequest(command *cobra.Command, arguments []string, options *runCommandOptions) (execshell.RunRequest, error) {
	document := RunRequestDocument{}
	if len(options.requestFile) > 0 {
		loadedDocument, loadError := loadRunRequestDocument(options.requestFile)
		if loadError != nil {
			return execshell.RunRequest{}, loadError
		}
		document = loadedDocument
	}

	request := execshell.RunRequest{
		WorkingDirectory: document.Path,
		BinaryName:       document.BinaryName,
		Arguments:        document.Arguments,
		UseElevation:     document.UseElevation,
	}
	if len(arguments) > 0 {
		request.BinaryName = arguments[0]
		request.Arguments = arguments[1:]
	}
	if command.Flags().Changed(runPathFlagNameConstant) {
		request.WorkingDirectory = options.path
	}
	if command.Flags().Changed(runElevationFlagNameConstant) {
		request.UseElevation = options.useElevation
	}
	return request, nil
}

func deriveSignalContext(provider SignalContextProvider, parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if provider != nil {
		return provider(parent)
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func loadRunRequestDocument(documentPath string) (RunRequestDocument, error) {
	content, readError := os.ReadFile(documentPath)
	if readError != nil {
		return RunRequestDocument{}, fmt.Errorf(requestReadErrorTemplateConstant, documentPath, readError)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	var document RunRequestDocument
	if decodeError := decoder.Decode(&document); decodeError != nil && !errors.Is(decodeError, io.EOF) {
		return RunRequestDocument{}, fmt.Errorf(requestParseErrorTemplateConstant, documentPath, decodeError)
	}
	return document, nil
}

func renderRunResult(standardOutput io.Writer, standardError io.Writer, outputFormat string, result execshell.RunResult) error {
	switch outputFormat {
	case runOutputJSONConstant:
		encoder := json.NewEncoder(standardOutput)
		encoder.SetIndent("", jsonIndentConstant)
		return encoder.Encode(result)
	case runOutputYAMLConstant:
		encoder := yaml.NewEncoder(standardOutput)
		encoder.SetIndent(yamlIndentConstant)
		if encodeError := encoder.Encode(result); encodeError != nil {
			return encodeError
		}
		return encoder.Close()
	default:
		if _, writeError := io.WriteString(standardOutput, result.StandardOutput); writeError != nil {
			return writeError
		}
		_, writeError := io.WriteString(standardError, result.StandardError)
		return writeError
	}
}
