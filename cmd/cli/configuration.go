package cli

import (
	"strings"
	"time"

	"github.com/temirov/binrunner/internal/execshell"
	"github.com/temirov/binrunner/internal/utils"
)

const (
	commonConfigurationKeyConstant           = "common"
	runnerConfigurationKeyConstant           = "runner"
	commonLogLevelConfigKeyConstant          = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant         = commonConfigurationKeyConstant + ".log_format"
	runnerSearchDirectoriesConfigKeyConstant = runnerConfigurationKeyConstant + ".search_directories"
	runnerElevationBinaryConfigKeyConstant   = runnerConfigurationKeyConstant + ".elevation_binary"
	runnerStopPollIntervalConfigKeyConstant  = runnerConfigurationKeyConstant + ".stop.poll_interval"
	runnerStopGracePeriodConfigKeyConstant   = runnerConfigurationKeyConstant + ".stop.grace_period"
	runnerStopDrainLingerConfigKeyConstant   = runnerConfigurationKeyConstant + ".stop.drain_linger"
)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Runner RunnerConfiguration            `mapstructure:"runner"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// RunnerConfiguration tunes executable resolution, elevation, and termination.
type RunnerConfiguration struct {
	SearchDirectories []string                `mapstructure:"search_directories"`
	ElevationBinary   string                  `mapstructure:"elevation_binary"`
	Stop              StopPolicyConfiguration `mapstructure:"stop"`
}

// StopPolicyConfiguration mirrors execshell.StopPolicy in configuration form.
type StopPolicyConfiguration struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	DrainLinger  time.Duration `mapstructure:"drain_linger"`
}

// DefaultRunnerConfiguration returns the built-in runner settings.
func DefaultRunnerConfiguration() RunnerConfiguration {
	stopPolicy := execshell.DefaultStopPolicy()
	return RunnerConfiguration{
		SearchDirectories: execshell.DefaultSearchDirectories(),
		ElevationBinary:   execshell.DefaultElevationBinary,
		Stop: StopPolicyConfiguration{
			PollInterval: stopPolicy.PollInterval,
			GracePeriod:  stopPolicy.GracePeriod,
			DrainLinger:  stopPolicy.DrainLinger,
		},
	}
}

// DefaultConfigurationValues returns viper defaults for every configuration key.
func DefaultConfigurationValues() map[string]any {
	runnerDefaults := DefaultRunnerConfiguration()
	return map[string]any{
		commonLogLevelConfigKeyConstant:          string(utils.LogLevelWarn),
		commonLogFormatConfigKeyConstant:         string(utils.LogFormatConsole),
		runnerSearchDirectoriesConfigKeyConstant: runnerDefaults.SearchDirectories,
		runnerElevationBinaryConfigKeyConstant:   runnerDefaults.ElevationBinary,
		runnerStopPollIntervalConfigKeyConstant:  runnerDefaults.Stop.PollInterval,
		runnerStopGracePeriodConfigKeyConstant:   runnerDefaults.Stop.GracePeriod,
		runnerStopDrainLingerConfigKeyConstant:   runnerDefaults.Stop.DrainLinger,
	}
}

// Sanitize trims string values and restores defaults for missing entries.
func (configuration RunnerConfiguration) Sanitize() RunnerConfiguration {
	defaults := DefaultRunnerConfiguration()
	sanitized := configuration

	sanitized.SearchDirectories = nil
	for _, searchDirectory := range configuration.SearchDirectories {
		trimmedDirectory := strings.TrimSpace(searchDirectory)
		if len(trimmedDirectory) > 0 {
			sanitized.SearchDirectories = append(sanitized.SearchDirectories, trimmedDirectory)
		}
	}
	if len(sanitized.SearchDirectories) == 0 {
		sanitized.SearchDirectories = defaults.SearchDirectories
	}

	sanitized.ElevationBinary = strings.TrimSpace(configuration.ElevationBinary)
	if len(sanitized.ElevationBinary) == 0 {
		sanitized.ElevationBinary = defaults.ElevationBinary
	}

	return sanitized
}

// StopPolicy converts the configured timings. Non-positive values fall back to
// the session defaults.
func (configuration RunnerConfiguration) StopPolicy() execshell.StopPolicy {
	return execshell.StopPolicy{
		PollInterval: configuration.Stop.PollInterval,
		GracePeriod:  configuration.Stop.GracePeriod,
		DrainLinger:  configuration.Stop.DrainLinger,
	}
}
