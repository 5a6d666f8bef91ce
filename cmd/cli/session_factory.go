package cli

import (
	"context"

	"go.uber.org/zap"

	"github.com/temirov/binrunner/internal/execshell"
	"github.com/temirov/binrunner/internal/ui"
	"github.com/temirov/binrunner/internal/utils"
	pathutils "github.com/temirov/binrunner/internal/utils/path"
)

const (
	commandConfigurationMessageConstant = "command configuration"
	logFieldCommandNameConstant         = "command"
	logFieldConfigurationFileConstant   = "config_file"
	logFieldSearchDirectoriesConstant   = "search_directories"
	embeddedConfigurationLabelConstant  = "embedded"
)

// RunnerConfigurationProvider yields the active runner configuration.
type RunnerConfigurationProvider func() RunnerConfiguration

// SessionFactory builds resolvers and sessions from the active configuration.
// Commands share it so that every entry point resolves and terminates
// processes the same way. The logger is taken from the command context.
type SessionFactory struct {
	ContextAccessor              utils.CommandContextAccessor
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        RunnerConfigurationProvider
	FileSystem                   execshell.FileSystem
}

// NewResolver constructs an ExecutableResolver over the configured search directories.
func (factory SessionFactory) NewResolver(executionContext context.Context) (*execshell.ExecutableResolver, error) {
	configuration := factory.resolveConfiguration()
	fileSystem := factory.FileSystem
	if fileSystem == nil {
		fileSystem = execshell.OSFileSystem{}
	}
	searchDirectories := pathutils.NewHomeExpander().ExpandAll(configuration.SearchDirectories)
	return execshell.NewExecutableResolver(factory.Logger(executionContext), fileSystem, searchDirectories)
}

// NewSession constructs a Session. Console logging attaches the human-readable lifecycle logger.
func (factory SessionFactory) NewSession(executionContext context.Context) (*execshell.Session, error) {
	resolver, resolverError := factory.NewResolver(executionContext)
	if resolverError != nil {
		return nil, resolverError
	}

	configuration := factory.resolveConfiguration()
	logger := factory.Logger(executionContext)
	sessionConfiguration := execshell.SessionConfiguration{
		ElevationBinary: configuration.ElevationBinary,
		StopPolicy:      configuration.StopPolicy(),
	}
	if factory.HumanReadableLoggingProvider != nil && factory.HumanReadableLoggingProvider() {
		sessionConfiguration.Observer = ui.NewConsoleCommandEventLogger(logger)
	}

	return execshell.NewSession(logger, resolver, sessionConfiguration)
}

func (factory SessionFactory) resolveConfiguration() RunnerConfiguration {
	if factory.ConfigurationProvider == nil {
		return DefaultRunnerConfiguration()
	}
	return factory.ConfigurationProvider().Sanitize()
}

// Logger returns the invocation logger stored on executionContext.
func (factory SessionFactory) Logger(executionContext context.Context) *zap.Logger {
	return factory.ContextAccessor.Logger(executionContext)
}

// LogCommandConfiguration records which configuration file a command runs with.
func (factory SessionFactory) LogCommandConfiguration(executionContext context.Context, commandName string) {
	configurationFilePath, available := factory.ContextAccessor.ConfigurationFilePath(executionContext)
	if !available || len(configurationFilePath) == 0 {
		configurationFilePath = embeddedConfigurationLabelConstant
	}
	factory.Logger(executionContext).Debug(
		commandConfigurationMessageConstant,
		zap.String(logFieldCommandNameConstant, commandName),
		zap.String(logFieldConfigurationFileConstant, configurationFilePath),
		zap.Strings(logFieldSearchDirectoriesConstant, factory.resolveConfiguration().SearchDirectories),
	)
}
