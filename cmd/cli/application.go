package cli

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/utils"
	flagutils "github.com/temirov/binrunner/internal/utils/flags"
)

const (
	applicationNameConstant                 = "binrunner"
	applicationShortDescriptionConstant     = "Run external executables with bounded, race-free termination"
	applicationLongDescriptionConstant      = "binrunner resolves an executable, runs it directly or through su -c, drains stdout and stderr concurrently, and stops it on request with SIGTERM followed by SIGKILL. Use it from a shell with run and resolve, or from another program with serve."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level (debug, info, warn, error)."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format."
	environmentPrefixConstant               = "BINRUNNER"
	configurationNameConstant               = "config"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	workingDirectorySearchPathConstant      = "."
	userConfigurationSearchPathConstant     = "~/.binrunner"
	developmentVersionConstant              = "dev"
	unknownModuleVersionConstant            = "(devel)"
)

// Version is the binrunner release, normally set at build time with -ldflags "-X".
var Version = developmentVersionConstant

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	commandContextAccessor utils.CommandContextAccessor
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{workingDirectorySearchPathConstant, userConfigurationSearchPathConstant},
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Version:       resolveVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
	}

	cobraCommand.SetContext(context.Background())
	persistentFlags := cobraCommand.PersistentFlags()
	persistentFlags.StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	persistentFlags.StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	flagutils.AddChoiceFlag(
		persistentFlags,
		&application.logFormatFlagValue,
		logFormatFlagNameConstant,
		string(utils.LogFormatConsole),
		utils.SupportedLogFormats(),
		logFormatFlagUsageConstant,
	)

	sessionFactory := SessionFactory{
		ContextAccessor:              application.commandContextAccessor,
		HumanReadableLoggingProvider: application.humanReadableLoggingEnabled,
		ConfigurationProvider: func() RunnerConfiguration {
			return application.configuration.Runner
		},
	}

	runBuilder := RunCommandBuilder{SessionFactory: sessionFactory}
	if runCommand, runBuildError := runBuilder.Build(); runBuildError == nil {
		cobraCommand.AddCommand(runCommand)
	}

	resolveBuilder := ResolveCommandBuilder{SessionFactory: sessionFactory}
	if resolveCommand, resolveBuildError := resolveBuilder.Build(); resolveBuildError == nil {
		cobraCommand.AddCommand(resolveCommand)
	}

	serveBuilder := ServeCommandBuilder{SessionFactory: sessionFactory}
	if serveCommand, serveBuildError := serveBuilder.Build(); serveBuildError == nil {
		cobraCommand.AddCommand(serveCommand)
	}

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil && executionError == nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(
		application.configurationFilePath,
		DefaultConfigurationValues(),
		&application.configuration,
	)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}
	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}
	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logLevel, levelError := utils.ParseLogLevel(application.configuration.Common.LogLevel)
	if levelError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, levelError)
	}
	logFormat, formatError := utils.ParseLogFormat(application.configuration.Common.LogFormat)
	if formatError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, formatError)
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(logLevel, logFormat)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}
	application.logger = logger

	application.logger.Debug(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, string(logLevel)),
		zap.String(configurationLogFormatFieldConstant, string(logFormat)),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		updatedContext = application.commandContextAccessor.WithLogger(updatedContext, application.logger)
		command.SetContext(updatedContext)
	}

	return nil
}

func (application *Application) humanReadableLoggingEnabled() bool {
	logFormatValue := strings.TrimSpace(application.configuration.Common.LogFormat)
	return strings.EqualFold(logFormatValue, string(utils.LogFormatConsole))
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	case errors.Is(syncError, syscall.ENOTTY):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if rootCommand := command.Root(); rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet != nil && flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}

func resolveVersion() string {
	if Version != developmentVersionConstant {
		return Version
	}
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 || buildInformation.Main.Version == unknownModuleVersionConstant {
		return Version
	}
	return buildInformation.Main.Version
}
