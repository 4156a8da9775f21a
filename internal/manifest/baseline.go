package manifest

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ConfigPathConstant is the capture-relative path of the copied repository configuration.
const ConfigPathConstant = ".git/config"

// HooksDirectoryConstant is the capture-relative path of the copied hooks directory.
const HooksDirectoryConstant = ".git/hooks"

const (
	baselineLoadErrorTemplateConstant    = "failed to load baseline %s: %w"
	baselineSaveErrorTemplateConstant    = "failed to save baseline %s: %w"
	baselineDecodeErrorTemplateConstant  = "failed to decode baseline %s: %w"
	baselineFilePermissionsConstant      = os.FileMode(0o644)
	baselineDirectoryPermissionsConstant = os.FileMode(0o755)
)

// BaselineEntry is one expected file of a trivial capture. An empty digest matches on presence.
type BaselineEntry struct {
	Path   string `yaml:"path"`
	SHA256 string `yaml:"sha256,omitempty"`
}

// Baseline is the content a capture has when the repository holds nothing but stock configuration.
type Baseline struct {
	Entries []BaselineEntry `yaml:"entries"`
}

// NewBaseline builds a baseline expecting the repository configuration and every hook of hooks,
// a manifest generated from a freshly initialized hooks directory.
func NewBaseline(hooks Manifest) Baseline {
	entries := []BaselineEntry{{Path: ConfigPathConstant}}
	for _, hook := range hooks.Entries {
		entries = append(entries, BaselineEntry{Path: path.Join(HooksDirectoryConstant, hook.Path), SHA256: hook.SHA256})
	}
	sortBaselineEntries(entries)
	return Baseline{Entries: entries}
}

// WithoutHooks returns a copy of the baseline without hook entries.
func (baseline Baseline) WithoutHooks() Baseline {
	filtered := make([]BaselineEntry, 0, len(baseline.Entries))
	for _, entry := range baseline.Entries {
		if isHookPath(entry.Path) {
			continue
		}
		filtered = append(filtered, entry)
	}
	return Baseline{Entries: filtered}
}

// Covers reports whether every file of the manifest is expected by the baseline.
func (baseline Baseline) Covers(captured Manifest) bool {
	expected := make(map[string]string, len(baseline.Entries))
	for _, entry := range baseline.Entries {
		expected[entry.Path] = entry.SHA256
	}
	for _, entry := range captured.Entries {
		digest, known := expected[entry.Path]
		if !known {
			return false
		}
		if len(digest) > 0 && digest != entry.SHA256 {
			return false
		}
	}
	return true
}

// LoadBaseline reads a YAML baseline. The boolean result is false when the file does not exist.
func LoadBaseline(fileSystem afero.Fs, baselinePath string) (Baseline, bool, error) {
	contents, readError := afero.ReadFile(fileSystem, baselinePath)
	if readError != nil {
		if errors.Is(readError, os.ErrNotExist) {
			return Baseline{}, false, nil
		}
		return Baseline{}, false, fmt.Errorf(baselineLoadErrorTemplateConstant, baselinePath, readError)
	}

	var baseline Baseline
	if decodeError := yaml.Unmarshal(contents, &baseline); decodeError != nil {
		return Baseline{}, false, fmt.Errorf(baselineDecodeErrorTemplateConstant, baselinePath, decodeError)
	}
	sortBaselineEntries(baseline.Entries)
	return baseline, true, nil
}

// SaveBaseline writes the baseline as YAML, creating parent directories.
func SaveBaseline(fileSystem afero.Fs, baselinePath string, baseline Baseline) error {
	contents, encodeError := yaml.Marshal(baseline)
	if encodeError != nil {
		return fmt.Errorf(baselineSaveErrorTemplateConstant, baselinePath, encodeError)
	}
	if mkdirError := fileSystem.MkdirAll(filepath.Dir(baselinePath), baselineDirectoryPermissionsConstant); mkdirError != nil {
		return fmt.Errorf(baselineSaveErrorTemplateConstant, baselinePath, mkdirError)
	}
	if writeError := afero.WriteFile(fileSystem, baselinePath, contents, baselineFilePermissionsConstant); writeError != nil {
		return fmt.Errorf(baselineSaveErrorTemplateConstant, baselinePath, writeError)
	}
	return nil
}

func isHookPath(entryPath string) bool {
	return strings.HasPrefix(entryPath, HooksDirectoryConstant+"/")
}

func sortBaselineEntries(entries []BaselineEntry) {
	sort.Slice(entries, func(left int, right int) bool {
		return entries[left].Path < entries[right].Path
	})
}
