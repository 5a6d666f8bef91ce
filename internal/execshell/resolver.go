package execshell

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const (
	executableBitsMaskConstant            = fs.FileMode(0o111)
	ownerExecutableBitConstant            = fs.FileMode(0o100)
	resolverChmodFailedMessageConstant    = "unable to mark executable"
	resolverCandidateFoundMessageConstant = "resolved executable from search directories"
	resolverFallbackMessageConstant       = "executable not found in search directories; deferring to PATH lookup"
	logFieldPathConstant                  = "path"
	logFieldBinaryNameConstant            = "binary_name"
)

// DefaultSearchDirectories lists the directories probed when no path hint is supplied.
func DefaultSearchDirectories() []string {
	return []string{
		"/system/bin",
		"/system/xbin",
		"/product/bin",
		"/vendor/bin",
		"/apex/com.android.runtime/bin",
		"/apex/com.android.art/bin",
		"/usr/local/bin",
		"/usr/bin",
		"/bin",
	}
}

// FileSystem exposes the file operations needed to resolve executables.
type FileSystem interface {
	Stat(path string) (fs.FileInfo, error)
	Chmod(path string, mode fs.FileMode) error
}

// OSFileSystem implements FileSystem using the operating system primitives.
type OSFileSystem struct{}

// Stat retrieves file metadata.
func (OSFileSystem) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Chmod changes file permissions.
func (OSFileSystem) Chmod(path string, mode fs.FileMode) error {
	return os.Chmod(path, mode)
}

// ExecutableResolver maps binary names to invocation paths.
type ExecutableResolver struct {
	fileSystem        FileSystem
	searchDirectories []string
	logger            *zap.Logger
}

// NewExecutableResolver constructs a resolver probing the supplied directories in order.
// An empty directory list selects DefaultSearchDirectories.
func NewExecutableResolver(logger *zap.Logger, fileSystem FileSystem, searchDirectories []string) (*ExecutableResolver, error) {
	if fileSystem == nil {
		return nil, ErrFileSystemNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	directories := make([]string, 0, len(searchDirectories))
	for _, searchDirectory := range searchDirectories {
		trimmedDirectory := strings.TrimSpace(searchDirectory)
		if len(trimmedDirectory) > 0 {
			directories = append(directories, trimmedDirectory)
		}
	}
	if len(directories) == 0 {
		directories = DefaultSearchDirectories()
	}

	return &ExecutableResolver{fileSystem: fileSystem, searchDirectories: directories, logger: logger}, nil
}

// SearchDirectories returns a copy of the probed directories.
func (resolver *ExecutableResolver) SearchDirectories() []string {
	return append([]string{}, resolver.searchDirectories...)
}

// Resolve returns the invocation path for binaryName.
//
// A blank pathHint probes the search directories and falls back to the bare
// binary name. A non-blank pathHint is joined with the binary name without any
// existence check. Absolute results are marked executable on a best-effort basis.
func (resolver *ExecutableResolver) Resolve(pathHint string, binaryName string) string {
	resolvedPath := resolver.resolvePath(strings.TrimSpace(pathHint), binaryName)
	if filepath.IsAbs(resolvedPath) {
		resolver.markExecutable(resolvedPath)
	}
	return resolvedPath
}

func (resolver *ExecutableResolver) resolvePath(pathHint string, binaryName string) string {
	if len(pathHint) > 0 {
		joinedPath := filepath.Join(pathHint, binaryName)
		absolutePath, absoluteError := filepath.Abs(joinedPath)
		if absoluteError != nil {
			return joinedPath
		}
		return absolutePath
	}

	for _, searchDirectory := range resolver.searchDirectories {
		candidatePath := filepath.Join(searchDirectory, binaryName)
		if resolver.isExecutableFile(candidatePath) {
			resolver.logger.Debug(resolverCandidateFoundMessageConstant, zap.String(logFieldPathConstant, candidatePath))
			return candidatePath
		}
	}

	resolver.logger.Debug(resolverFallbackMessageConstant, zap.String(logFieldBinaryNameConstant, binaryName))
	return binaryName
}

func (resolver *ExecutableResolver) isExecutableFile(candidatePath string) bool {
	fileInfo, statError := resolver.fileSystem.Stat(candidatePath)
	if statError != nil {
		return false
	}
	if fileInfo.IsDir() {
		return false
	}
	return fileInfo.Mode().Perm()&executableBitsMaskConstant != 0
}

func (resolver *ExecutableResolver) markExecutable(resolvedPath string) {
	fileInfo, statError := resolver.fileSystem.Stat(resolvedPath)
	if statError != nil || fileInfo.IsDir() {
		return
	}
	currentMode := fileInfo.Mode().Perm()
	if currentMode&ownerExecutableBitConstant != 0 {
		return
	}
	if chmodError := resolver.fileSystem.Chmod(resolvedPath, currentMode|ownerExecutableBitConstant); chmodError != nil {
		resolver.logger.Debug(resolverChmodFailedMessageConstant, zap.String(logFieldPathConstant, resolvedPath), zap.Error(chmodError))
	}
}
