package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/gitbackup/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant = "tar executor not configured"
	archivePathRequiredMessageConstant   = "archive path must be provided"
	noEntriesMessageConstant             = "no entries to archive"
	archiveCreationErrorTemplateConstant = "failed to create archive %s: %w"
	createFlagConstant                   = "-cf"
	directoryFlagConstant                = "-C"
	fileListFlagConstant                 = "-T"
	standardInputPathConstant            = "-"
	currentDirectoryEntryConstant        = "."
	entryListSeparatorConstant           = "\n"
	optionPrefixConstant                 = "-"
	relativeEntryPrefixConstant          = "./"
)

// ErrExecutorNotConfigured indicates NewArchiver received a nil executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// ErrArchivePathRequired indicates an empty archive destination.
var ErrArchivePathRequired = errors.New(archivePathRequiredMessageConstant)

// ErrNoEntries indicates an explicit file list was empty.
var ErrNoEntries = errors.New(noEntriesMessageConstant)

// TarExecutor runs tar commands.
type TarExecutor interface {
	ExecuteTar(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// Archiver writes tar archives.
type Archiver struct {
	executor TarExecutor
}

// NewArchiver constructs an Archiver.
func NewArchiver(executor TarExecutor) (*Archiver, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &Archiver{executor: executor}, nil
}

// ArchiveDirectory archives the named top-level entries of sourceDirectory, storing them relative to it.
// An empty entry list archives the directory itself as ".". Entries starting with a dash are stored as
// "./<entry>" so tar never reads them as options.
func (archiver *Archiver) ArchiveDirectory(executionContext context.Context, archivePath string, sourceDirectory string, entries []string) error {
	if len(strings.TrimSpace(archivePath)) == 0 {
		return ErrArchivePathRequired
	}

	arguments := []string{createFlagConstant, archivePath, directoryFlagConstant, sourceDirectory}
	if len(entries) == 0 {
		arguments = append(arguments, currentDirectoryEntryConstant)
	} else {
		arguments = append(arguments, literalEntries(entries)...)
	}

	if _, executionError := archiver.executor.ExecuteTar(executionContext, execshell.CommandDetails{Arguments: arguments}); executionError != nil {
		return fmt.Errorf(archiveCreationErrorTemplateConstant, archivePath, executionError)
	}
	return nil
}

// ArchiveFileList archives paths relative to baseDirectory, passing the list on standard input.
// Paths starting with a dash are listed as "./<path>" because tar parses such list lines as options.
func (archiver *Archiver) ArchiveFileList(executionContext context.Context, archivePath string, baseDirectory string, paths []string) error {
	if len(strings.TrimSpace(archivePath)) == 0 {
		return ErrArchivePathRequired
	}
	if len(paths) == 0 {
		return ErrNoEntries
	}

	fileList := strings.Join(literalEntries(paths), entryListSeparatorConstant) + entryListSeparatorConstant
	_, executionError := archiver.executor.ExecuteTar(executionContext, execshell.CommandDetails{
		Arguments:     []string{createFlagConstant, archivePath, directoryFlagConstant, baseDirectory, fileListFlagConstant, standardInputPathConstant},
		StandardInput: []byte(fileList),
	})
	if executionError != nil {
		return fmt.Errorf(archiveCreationErrorTemplateConstant, archivePath, executionError)
	}
	return nil
}

func literalEntries(entries []string) []string {
	literal := make([]string, 0, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry, optionPrefixConstant) {
			entry = relativeEntryPrefixConstant + entry
		}
		literal = append(literal, entry)
	}
	return literal
}
