// Package pathutils expands user-relative paths found in configuration values.
package pathutils

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant             = "~"
	tildeForwardSlashPrefixConstant = "~/"
)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander converts leading tilde shortcuts to absolute paths. The home
// directory is looked up once, on first use.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectory         string
	lookupGuard           sync.Once
}

// NewHomeExpander constructs a HomeExpander using the operating system lookup.
func NewHomeExpander() *HomeExpander {
	return NewHomeExpanderWithProvider(os.UserHomeDir)
}

// NewHomeExpanderWithProvider constructs a HomeExpander with a custom provider.
func NewHomeExpanderWithProvider(provider HomeDirectoryProvider) *HomeExpander {
	if provider == nil {
		provider = os.UserHomeDir
	}
	return &HomeExpander{homeDirectoryProvider: provider}
}

// Expand resolves "~" and "~/..." to the user's home directory. Other paths,
// including "~user" forms, are returned unchanged, as is everything when the
// home directory cannot be determined.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	homeDirectory := expander.resolveHomeDirectory()
	if len(homeDirectory) == 0 {
		return candidatePath
	}

	if candidatePath == tildeSymbolConstant {
		return homeDirectory
	}

	for _, prefix := range []string{tildeForwardSlashPrefixConstant, tildeSymbolConstant + string(os.PathSeparator)} {
		if strings.HasPrefix(candidatePath, prefix) {
			return filepath.Join(homeDirectory, strings.TrimPrefix(candidatePath, prefix))
		}
	}

	return candidatePath
}

// ExpandAll expands every entry and drops entries that are blank after trimming.
func (expander *HomeExpander) ExpandAll(candidatePaths []string) []string {
	expandedPaths := make([]string, 0, len(candidatePaths))
	for _, candidatePath := range candidatePaths {
		trimmedPath := strings.TrimSpace(candidatePath)
		if len(trimmedPath) == 0 {
			continue
		}
		expandedPaths = append(expandedPaths, expander.Expand(trimmedPath))
	}
	return expandedPaths
}

func (expander *HomeExpander) resolveHomeDirectory() string {
	expander.lookupGuard.Do(func() {
		homeDirectory, lookupError := expander.homeDirectoryProvider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
