package gitrepo

import (
	"os"
	"strconv"
	"strings"
)

const (
	cleanDryRunPrefixConstant            = "Would remove "
	stashReferenceSeparatorConstant      = ":"
	stashLabelPathReplacementConstant    = "_"
	forwardSlashConstant                 = "/"
	quotedPathDelimiterConstant          = `"`
	submoduleUninitializedMarkerConstant = '-'
	submoduleFieldSeparatorConstant      = " "
	submoduleDescribeOpeningConstant     = " ("
	submoduleDescribeClosingConstant     = ")"
)

// StashEntry is one line of `git stash list`.
type StashEntry struct {
	Reference string
	Label     string
}

// FileName returns the label flattened into a single path component.
func (entry StashEntry) FileName() string {
	fileName := strings.ReplaceAll(entry.Label, forwardSlashConstant, stashLabelPathReplacementConstant)
	if os.PathSeparator != '/' {
		fileName = strings.ReplaceAll(fileName, string(os.PathSeparator), stashLabelPathReplacementConstant)
	}
	return fileName
}

// SubmoduleEntry is one line of `git submodule status`.
type SubmoduleEntry struct {
	Path        string
	Commit      string
	Initialized bool
}

// ParseCleanDryRun extracts paths from `git clean --dry-run` output, unquoting C-style quoted paths.
func ParseCleanDryRun(output string) []string {
	var paths []string
	for _, line := range strings.Split(output, "\n") {
		trimmedLine := strings.TrimRight(line, "\r")
		if !strings.HasPrefix(trimmedLine, cleanDryRunPrefixConstant) {
			continue
		}
		candidate := strings.TrimSpace(strings.TrimPrefix(trimmedLine, cleanDryRunPrefixConstant))
		if len(candidate) == 0 {
			continue
		}
		paths = append(paths, unquotePath(candidate))
	}
	return paths
}

// ParseStashList parses `git stash list` output. The reference is the text before the first colon;
// the label is the whole trimmed line.
func ParseStashList(output string) []StashEntry {
	var entries []StashEntry
	for _, line := range splitNonEmptyLines(output) {
		reference := line
		if separatorIndex := strings.Index(line, stashReferenceSeparatorConstant); separatorIndex >= 0 {
			reference = line[:separatorIndex]
		}
		entries = append(entries, StashEntry{Reference: strings.TrimSpace(reference), Label: line})
	}
	return entries
}

// ParseSubmoduleStatus parses `git submodule status` output. Each line is a status marker, the commit,
// the path (which may contain spaces) and an optional " (<describe>)" suffix.
func ParseSubmoduleStatus(output string) []SubmoduleEntry {
	var entries []SubmoduleEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if len(strings.TrimSpace(line)) == 0 {
			continue
		}
		statusMarker := line[0]
		commit, path, found := strings.Cut(line[1:], submoduleFieldSeparatorConstant)
		if !found {
			continue
		}
		path = stripSubmoduleDescription(path)
		if len(path) == 0 {
			continue
		}
		entries = append(entries, SubmoduleEntry{
			Path:        path,
			Commit:      commit,
			Initialized: statusMarker != submoduleUninitializedMarkerConstant,
		})
	}
	return entries
}

func stripSubmoduleDescription(pathWithDescription string) string {
	if !strings.HasSuffix(pathWithDescription, submoduleDescribeClosingConstant) {
		return pathWithDescription
	}
	openingIndex := strings.LastIndex(pathWithDescription, submoduleDescribeOpeningConstant)
	if openingIndex <= 0 {
		return pathWithDescription
	}
	return pathWithDescription[:openingIndex]
}

func unquotePath(candidate string) string {
	if !strings.HasPrefix(candidate, quotedPathDelimiterConstant) || !strings.HasSuffix(candidate, quotedPathDelimiterConstant) {
		return candidate
	}
	unquoted, unquoteError := strconv.Unquote(candidate)
	if unquoteError != nil {
		return candidate
	}
	return unquoted
}

func splitNonEmptyLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		trimmedLine := strings.TrimSpace(line)
		if len(trimmedLine) == 0 {
			continue
		}
		lines = append(lines, trimmedLine)
	}
	return lines
}
