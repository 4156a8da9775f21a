package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

const (
	copyTreeErrorTemplateConstant       = "failed to copy %s to %s: %w"
	copyFileErrorTemplateConstant       = "failed to copy file %s to %s: %w"
	pruneErrorTemplateConstant          = "failed to prune %s: %w"
	moveErrorTemplateConstant           = "failed to move %s to %s: %w"
	listErrorTemplateConstant           = "failed to list %s: %w"
	stopDirectoryOutsideMessageConstant = "directory is not inside the stop directory"
	directoryPermissionsConstant        = os.FileMode(0o755)
)

// ErrOutsideStopDirectory indicates PruneEmptyParents was asked to climb outside its boundary.
var ErrOutsideStopDirectory = errors.New(stopDirectoryOutsideMessageConstant)

// FileSystem performs capture file operations on an afero filesystem.
type FileSystem struct {
	fs afero.Fs
}

// NewOSFileSystem constructs a FileSystem backed by the operating system.
func NewOSFileSystem() *FileSystem {
	return &FileSystem{fs: afero.NewOsFs()}
}

// NewFileSystem constructs a FileSystem backed by the provided afero filesystem.
func NewFileSystem(backing afero.Fs) *FileSystem {
	if backing == nil {
		backing = afero.NewOsFs()
	}
	return &FileSystem{fs: backing}
}

// Afero exposes the backing filesystem.
func (fileSystem *FileSystem) Afero() afero.Fs {
	return fileSystem.fs
}

// MkdirAll creates a directory hierarchy.
func (fileSystem *FileSystem) MkdirAll(path string) error {
	return fileSystem.fs.MkdirAll(path, directoryPermissionsConstant)
}

// WriteFile writes data to path, creating parent directories.
func (fileSystem *FileSystem) WriteFile(path string, data []byte) error {
	if mkdirError := fileSystem.MkdirAll(filepath.Dir(path)); mkdirError != nil {
		return mkdirError
	}
	return afero.WriteFile(fileSystem.fs, path, data, 0o644)
}

// Exists reports whether path exists without following a final symlink.
func (fileSystem *FileSystem) Exists(path string) (bool, error) {
	_, statError := fileSystem.lstat(path)
	if statError == nil {
		return true, nil
	}
	if errors.Is(statError, os.ErrNotExist) {
		return false, nil
	}
	return false, statError
}

// IsDirectory reports whether path is an existing directory.
func (fileSystem *FileSystem) IsDirectory(path string) (bool, error) {
	info, statError := fileSystem.fs.Stat(path)
	if statError != nil {
		if errors.Is(statError, os.ErrNotExist) {
			return false, nil
		}
		return false, statError
	}
	return info.IsDir(), nil
}

// EntryNames lists the names directly inside directory, hidden entries included, sorted.
func (fileSystem *FileSystem) EntryNames(directory string) ([]string, error) {
	entries, readError := afero.ReadDir(fileSystem.fs, directory)
	if readError != nil {
		return nil, fmt.Errorf(listErrorTemplateConstant, directory, readError)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}

// RemoveAll deletes path and everything below it.
func (fileSystem *FileSystem) RemoveAll(path string) error {
	return fileSystem.fs.RemoveAll(path)
}

// CopyFile copies one regular file, preserving its permission bits and modification time.
func (fileSystem *FileSystem) CopyFile(sourcePath string, destinationPath string) error {
	info, statError := fileSystem.fs.Stat(sourcePath)
	if statError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, destinationPath, statError)
	}
	if mkdirError := fileSystem.MkdirAll(filepath.Dir(destinationPath)); mkdirError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, destinationPath, mkdirError)
	}
	if copyError := fileSystem.copyRegularFile(sourcePath, destinationPath, info); copyError != nil {
		return fmt.Errorf(copyFileErrorTemplateConstant, sourcePath, destinationPath, copyError)
	}
	return nil
}

// CopyTree copies sourceDirectory into destinationDirectory verbatim: directories, regular files
// with their modification times, and symlinks (as links, never followed). Other file types are skipped.
func (fileSystem *FileSystem) CopyTree(sourceDirectory string, destinationDirectory string) error {
	walkError := afero.Walk(fileSystem.fs, sourceDirectory, func(sourcePath string, info os.FileInfo, walkError error) error {
		if walkError != nil {
			return walkError
		}
		relativePath, relativeError := filepath.Rel(sourceDirectory, sourcePath)
		if relativeError != nil {
			return relativeError
		}
		destinationPath := filepath.Join(destinationDirectory, relativePath)

		switch {
		case info.IsDir():
			return fileSystem.fs.MkdirAll(destinationPath, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			return fileSystem.copySymlink(sourcePath, destinationPath)
		case info.Mode().IsRegular():
			return fileSystem.copyRegularFile(sourcePath, destinationPath, info)
		default:
			return nil
		}
	})
	if walkError != nil {
		return fmt.Errorf(copyTreeErrorTemplateConstant, sourceDirectory, destinationDirectory, walkError)
	}
	return nil
}

// PruneEmptyParents removes directory's ancestors while they are empty, stopping at stopDirectory,
// which is never removed.
func (fileSystem *FileSystem) PruneEmptyParents(directory string, stopDirectory string) error {
	cleanStop := filepath.Clean(stopDirectory)
	current := filepath.Clean(directory)

	relativePath, relativeError := filepath.Rel(cleanStop, current)
	if relativeError != nil || relativePath == ".." || strings.HasPrefix(relativePath, ".."+string(filepath.Separator)) {
		return ErrOutsideStopDirectory
	}

	for current != cleanStop {
		entries, readError := afero.ReadDir(fileSystem.fs, current)
		if readError != nil {
			if errors.Is(readError, os.ErrNotExist) {
				current = filepath.Dir(current)
				continue
			}
			return fmt.Errorf(pruneErrorTemplateConstant, current, readError)
		}
		if len(entries) > 0 {
			return nil
		}
		if removeError := fileSystem.fs.Remove(current); removeError != nil {
			return fmt.Errorf(pruneErrorTemplateConstant, current, removeError)
		}
		current = filepath.Dir(current)
	}
	return nil
}

// Move renames sourcePath to destinationPath, copying and deleting when they are on different devices.
func (fileSystem *FileSystem) Move(sourcePath string, destinationPath string) error {
	renameError := fileSystem.fs.Rename(sourcePath, destinationPath)
	if renameError == nil {
		return nil
	}
	if !errors.Is(renameError, syscall.EXDEV) {
		return fmt.Errorf(moveErrorTemplateConstant, sourcePath, destinationPath, renameError)
	}
	if copyError := fileSystem.CopyFile(sourcePath, destinationPath); copyError != nil {
		return fmt.Errorf(moveErrorTemplateConstant, sourcePath, destinationPath, copyError)
	}
	if removeError := fileSystem.fs.Remove(sourcePath); removeError != nil {
		return fmt.Errorf(moveErrorTemplateConstant, sourcePath, destinationPath, removeError)
	}
	return nil
}

func (fileSystem *FileSystem) copyRegularFile(sourcePath string, destinationPath string, sourceInfo os.FileInfo) error {
	sourceFile, openError := fileSystem.fs.Open(sourcePath)
	if openError != nil {
		return openError
	}
	defer sourceFile.Close()

	destinationFile, createError := fileSystem.fs.OpenFile(destinationPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, sourceInfo.Mode().Perm())
	if createError != nil {
		return createError
	}
	if _, copyError := io.Copy(destinationFile, sourceFile); copyError != nil {
		destinationFile.Close()
		return copyError
	}
	if closeError := destinationFile.Close(); closeError != nil {
		return closeError
	}
	return fileSystem.fs.Chtimes(destinationPath, sourceInfo.ModTime(), sourceInfo.ModTime())
}

func (fileSystem *FileSystem) copySymlink(sourcePath string, destinationPath string) error {
	reader, readsLinks := fileSystem.fs.(afero.LinkReader)
	linker, createsLinks := fileSystem.fs.(afero.Linker)
	if !readsLinks || !createsLinks {
		return nil
	}
	target, readError := reader.ReadlinkIfPossible(sourcePath)
	if readError != nil {
		return readError
	}
	return linker.SymlinkIfPossible(target, destinationPath)
}

func (fileSystem *FileSystem) lstat(path string) (os.FileInfo, error) {
	if lstater, supportsLstat := fileSystem.fs.(afero.Lstater); supportsLstat {
		info, _, lstatError := lstater.LstatIfPossible(path)
		return info, lstatError
	}
	return fileSystem.fs.Stat(path)
}
