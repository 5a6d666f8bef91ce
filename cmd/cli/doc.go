// Package cli constructs the binrunner command-line interface.
//
// The root command loads configuration (embedded defaults, config.yaml from the
// working directory or ~/.binrunner, an explicit --config file, and BINRUNNER_*
// environment variables), builds the zap logger, and hosts the run, resolve,
// and serve subcommands. All of them construct sessions through SessionFactory.
package cli
