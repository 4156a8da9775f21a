package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/gitbackup/internal/archive"
	"github.com/temirov/gitbackup/internal/backup"
	"github.com/temirov/gitbackup/internal/execshell"
	"github.com/temirov/gitbackup/internal/gitrepo"
	"github.com/temirov/gitbackup/internal/ui"
)

const (
	temporaryDirectoryPrefixConstant        = "git-backup"
	stagingDirectoryNameConstant            = "staging"
	archiveFileNameConstant                 = "archive.tar"
	resolvedRequestMessageConstant          = "resolved backup request"
	backupCompletedMessageConstant          = "Backup written"
	logFieldRequestConstant                 = "request"
	logFieldDestinationConstant             = "destination"
	logFieldArtifactCountConstant           = "artifacts"
	logFieldTemporaryDirectoryConstant      = "temporary_directory"
	temporaryCleanupFailedMessageConstant   = "unable to remove temporary directory"
	temporaryDirectoryErrorTemplateConstant = "unable to create temporary directory: %w"
	stagingDirectoryErrorTemplateConstant   = "unable to create staging directory: %w"
	stagingListErrorTemplateConstant        = "unable to list staging directory: %w"
	archiveMoveErrorTemplateConstant        = "unable to move archive to %s: %w"
	collaboratorErrorTemplateConstant       = "unable to assemble backup: %w"
)

func (application *Application) runRootCommand(command *cobra.Command, arguments []string) error {
	request, resolveError := application.resolveBackupRequest(command, arguments)
	if resolveError != nil {
		return resolveError
	}

	application.logger.Debug(resolvedRequestMessageConstant, zap.String(logFieldRequestConstant, spew.Sdump(request)))

	return application.runBackup(command.Context(), request, ui.NewConsoleOutput(command.OutOrStdout()))
}

// runBackup captures into a private staging directory, archives it and moves the archive into
// place. The temporary directory is removed on every return path.
func (application *Application) runBackup(executionContext context.Context, request backupRequest, output *ui.ConsoleOutput) error {
	if announceError := output.AnnounceDestination(request.DestinationPath); announceError != nil {
		return announceError
	}

	temporaryDirectory, temporaryDirectoryError := afero.TempDir(application.fileSystem.Afero(), application.temporaryDirectoryBase, temporaryDirectoryPrefixConstant)
	if temporaryDirectoryError != nil {
		return fmt.Errorf(temporaryDirectoryErrorTemplateConstant, temporaryDirectoryError)
	}
	defer application.removeTemporaryDirectory(temporaryDirectory)

	stagingDirectory := filepath.Join(temporaryDirectory, stagingDirectoryNameConstant)
	if mkdirError := application.fileSystem.MkdirAll(stagingDirectory); mkdirError != nil {
		return fmt.Errorf(stagingDirectoryErrorTemplateConstant, mkdirError)
	}

	service, archiver, assemblyError := application.assembleBackup(request.Options)
	if assemblyError != nil {
		return fmt.Errorf(collaboratorErrorTemplateConstant, assemblyError)
	}

	result, captureError := service.Capture(executionContext, request.RepositoryPath, stagingDirectory)
	if captureError != nil {
		return captureError
	}

	stagedEntries, listError := application.fileSystem.EntryNames(stagingDirectory)
	if listError != nil {
		return fmt.Errorf(stagingListErrorTemplateConstant, listError)
	}

	archivePath := filepath.Join(temporaryDirectory, archiveFileNameConstant)
	if archiveError := archiver.ArchiveDirectory(executionContext, archivePath, stagingDirectory, stagedEntries); archiveError != nil {
		return archiveError
	}

	if moveError := application.fileSystem.Move(archivePath, request.DestinationPath); moveError != nil {
		return fmt.Errorf(archiveMoveErrorTemplateConstant, request.DestinationPath, moveError)
	}

	application.logger.Info(
		backupCompletedMessageConstant,
		zap.String(logFieldDestinationConstant, request.DestinationPath),
		zap.Int(logFieldArtifactCountConstant, result.ArtifactCount()),
	)

	if request.Summary {
		ui.NewSummaryRenderer(output).Render(result)
	}

	return nil
}

func (application *Application) assembleBackup(options backup.Options) (*backup.Service, *archive.Archiver, error) {
	var executorOptions []execshell.ShellExecutorOption
	if application.humanReadableLoggingEnabled() {
		executorOptions = append(executorOptions, execshell.WithCommandEventObserver(ui.NewConsoleCommandEventLogger(application.logger)))
	}

	executor, executorError := execshell.NewShellExecutor(application.logger, application.commandRunner, executorOptions...)
	if executorError != nil {
		return nil, nil, executorError
	}

	repositoryManager, managerError := gitrepo.NewRepositoryManager(executor)
	if managerError != nil {
		return nil, nil, managerError
	}

	archiver, archiverError := archive.NewArchiver(executor)
	if archiverError != nil {
		return nil, nil, archiverError
	}

	service, serviceError := backup.NewService(backup.ServiceDependencies{
		Logger:     application.logger,
		Repository: repositoryManager,
		Archiver:   archiver,
		FileSystem: application.fileSystem,
		Baselines:  backup.NewBaselineSource(application.logger, repositoryManager, application.fileSystem.Afero(), options.BaselineFilePath),
	}, options)
	if serviceError != nil {
		return nil, nil, serviceError
	}

	return service, archiver, nil
}

func (application *Application) removeTemporaryDirectory(temporaryDirectory string) {
	if removeError := application.fileSystem.RemoveAll(temporaryDirectory); removeError != nil {
		application.logger.Warn(
			temporaryCleanupFailedMessageConstant,
			zap.String(logFieldTemporaryDirectoryConstant, temporaryDirectory),
			zap.Error(removeError),
		)
	}
}
