package pathutils

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	tildeSymbolConstant      = "~"
	emptyPathMessageConstant = "path is empty"
)

// ErrEmptyPath indicates that a path argument was blank.
var ErrEmptyPath = errors.New(emptyPathMessageConstant)

// HomeDirectoryProvider resolves the current user's home directory path.
type HomeDirectoryProvider func() (string, error)

// HomeExpander turns user-supplied paths such as "~/backups/repo.tar" into absolute paths.
// Only the current user's home is expanded; "~other" forms are left alone.
type HomeExpander struct {
	homeDirectoryProvider HomeDirectoryProvider
	homeDirectoryOnce     sync.Once
	homeDirectory         string
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

// Expand replaces a leading "~" or "~/" with the home directory. The path is returned unchanged when
// the home directory cannot be determined.
func (expander *HomeExpander) Expand(candidatePath string) string {
	if expander == nil || !strings.HasPrefix(candidatePath, tildeSymbolConstant) {
		return candidatePath
	}

	remainder := strings.TrimPrefix(candidatePath, tildeSymbolConstant)
	if len(remainder) > 0 && remainder[0] != '/' && remainder[0] != os.PathSeparator {
		return candidatePath
	}

	homeDirectory := expander.home()
	if len(homeDirectory) == 0 {
		return candidatePath
	}
	return filepath.Join(homeDirectory, remainder)
}

// Resolve expands a leading tilde and makes the result absolute against the working directory.
func (expander *HomeExpander) Resolve(candidatePath string) (string, error) {
	expandedPath := expander.Expand(strings.TrimSpace(candidatePath))
	if len(expandedPath) == 0 {
		return "", ErrEmptyPath
	}
	return filepath.Abs(expandedPath)
}

func (expander *HomeExpander) home() string {
	expander.homeDirectoryOnce.Do(func() {
		homeDirectory, lookupError := expander.homeDirectoryProvider()
		if lookupError == nil {
			expander.homeDirectory = homeDirectory
		}
	})
	return expander.homeDirectory
}
