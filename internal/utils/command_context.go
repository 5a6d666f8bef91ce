package utils

import (
	"context"

	"go.uber.org/zap"
)

const (
	configurationFilePathContextKeyConstant = commandContextKey("configurationFilePath")
	loggerContextKeyConstant                = commandContextKey("logger")
)

type commandContextKey string

// CommandContextAccessor stores and retrieves per-invocation values on command contexts.
type CommandContextAccessor struct{}

// NewCommandContextAccessor constructs a CommandContextAccessor instance.
func NewCommandContextAccessor() CommandContextAccessor {
	return CommandContextAccessor{}
}

// WithConfigurationFilePath attaches the configuration file path to the provided context.
func (accessor CommandContextAccessor) WithConfigurationFilePath(parentContext context.Context, configurationFilePath string) context.Context {
	return context.WithValue(accessor.ensureContext(parentContext), configurationFilePathContextKeyConstant, configurationFilePath)
}

// ConfigurationFilePath extracts the configuration file path from the provided context.
func (accessor CommandContextAccessor) ConfigurationFilePath(executionContext context.Context) (string, bool) {
	if executionContext == nil {
		return "", false
	}
	configurationFilePath, available := executionContext.Value(configurationFilePathContextKeyConstant).(string)
	return configurationFilePath, available
}

// WithLogger attaches the invocation logger to the provided context.
func (accessor CommandContextAccessor) WithLogger(parentContext context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(accessor.ensureContext(parentContext), loggerContextKeyConstant, logger)
}

// Logger extracts the invocation logger, falling back to a no-op logger.
func (accessor CommandContextAccessor) Logger(executionContext context.Context) *zap.Logger {
	if executionContext == nil {
		return zap.NewNop()
	}
	logger, available := executionContext.Value(loggerContextKeyConstant).(*zap.Logger)
	if !available || logger == nil {
		return zap.NewNop()
	}
	return logger
}

func (accessor CommandContextAccessor) ensureContext(parentContext context.Context) context.Context {
	if parentContext == nil {
		return context.Background()
	}
	return parentContext
}
