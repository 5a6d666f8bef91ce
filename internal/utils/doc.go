// Package utils exposes the ambient helpers shared by every binrunner command.
//
// LoggerFactory builds zap loggers that always write to standard error so that
// standard output stays reserved for process output and bridge responses.
// ConfigurationLoader layers the embedded defaults, an optional YAML file, and
// BINRUNNER_* environment overrides through Viper. FlushingWriter keeps the
// bridge's buffered responses visible to the peer after every message.
package utils
