package manifest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

const (
	generateErrorTemplateConstant = "failed to generate manifest for %s: %w"
	hashErrorTemplateConstant     = "failed to hash %s: %w"
)

// Entry is one file of a manifest.
type Entry struct {
	Path   string `yaml:"path"`
	Size   int64  `yaml:"size"`
	SHA256 string `yaml:"sha256"`
}

// Manifest lists the files below a directory, sorted by path.
type Manifest struct {
	Entries []Entry
}

// Paths returns the slash separated paths of the manifest in order.
func (manifest Manifest) Paths() []string {
	paths := make([]string, 0, len(manifest.Entries))
	for _, entry := range manifest.Entries {
		paths = append(paths, entry.Path)
	}
	return paths
}

// Empty reports whether the manifest lists no files.
func (manifest Manifest) Empty() bool {
	return len(manifest.Entries) == 0
}

// Generate walks root and records every regular file and symlink with a path relative to root.
// Symlinks are digested by their target text.
func Generate(fileSystem afero.Fs, root string) (Manifest, error) {
	entries := make([]Entry, 0)
	walkError := afero.Walk(fileSystem, root, func(currentPath string, info os.FileInfo, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if info.IsDir() {
			return nil
		}
		relativePath, relativeError := filepath.Rel(root, currentPath)
		if relativeError != nil {
			return relativeError
		}

		var digest string
		var digestError error
		switch {
		case info.Mode()&os.ModeSymlink != 0:
			digest, digestError = digestSymlink(fileSystem, currentPath)
		case info.Mode().IsRegular():
			digest, digestError = digestFile(fileSystem, currentPath)
		default:
			return nil
		}
		if digestError != nil {
			return fmt.Errorf(hashErrorTemplateConstant, currentPath, digestError)
		}

		entries = append(entries, Entry{Path: filepath.ToSlash(relativePath), Size: info.Size(), SHA256: digest})
		return nil
	})
	if walkError != nil {
		return Manifest{}, fmt.Errorf(generateErrorTemplateConstant, root, walkError)
	}

	sort.Slice(entries, func(left int, right int) bool {
		return entries[left].Path < entries[right].Path
	})
	return Manifest{Entries: entries}, nil
}

func digestFile(fileSystem afero.Fs, path string) (string, error) {
	file, openError := fileSystem.Open(path)
	if openError != nil {
		return "", openError
	}
	defer file.Close()

	hasher := sha256.New()
	if _, copyError := io.Copy(hasher, file); copyError != nil {
		return "", copyError
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func digestSymlink(fileSystem afero.Fs, path string) (string, error) {
	reader, readsLinks := fileSystem.(afero.LinkReader)
	if !readsLinks {
		return digestFile(fileSystem, path)
	}
	target, readError := reader.ReadlinkIfPossible(path)
	if readError != nil {
		return "", readError
	}
	sum := sha256.Sum256([]byte(target))
	return hex.EncodeToString(sum[:]), nil
}
