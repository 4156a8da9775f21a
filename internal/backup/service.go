package backup

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/temirov/gitbackup/internal/gitrepo"
	"github.com/temirov/gitbackup/internal/manifest"
)

const (
	stepValidateRepositoryConstant       = "validate repository"
	stepResolveGitDirectoryConstant      = "resolve git directory"
	stepPrepareOutputConstant            = "prepare output directory"
	stepListRemotesConstant              = "list remotes"
	stepCopyConfigConstant               = "copy config"
	stepCopyHooksConstant                = "copy hooks"
	stepExportBranchesConstant           = "export branch patches"
	stepStagedDiffConstant               = "capture staged changes"
	stepUnstagedDiffConstant             = "capture unstaged changes"
	stepUntrackedArchiveConstant         = "archive untracked files"
	stepIgnoredArchiveConstant           = "archive ignored files"
	stepStashesConstant                  = "export stashes"
	stepSubmodulesConstant               = "capture submodules"
	stepCopyRepositoryConstant           = "copy repository"
	stepDetachGitDirectoryConstant       = "detach git directory"
	stepGarbageCollectConstant           = "garbage collect"
	stepBaselineConstant                 = "resolve baseline"
	stepPruneSubmoduleConstant           = "prune trivial submodule"
	gitDirectoryNameConstant             = ".git"
	configFileNameConstant               = "config"
	hooksDirectoryNameConstant           = "hooks"
	cachedChangesFileNameConstant        = "cached_changes.patch"
	changesFileNameConstant              = "changes.patch"
	untrackedArchiveFileNameConstant     = "untracked.tar"
	ignoredArchiveFileNameConstant       = "ignored.tar"
	worktreeConfigKeyConstant            = "core.worktree"
	unnamedBranchPrefixConstant          = "("
	captureStartedMessageConstant        = "Capturing repository"
	branchSkippedMessageConstant         = "Skipping branch without local commits"
	branchExportedMessageConstant        = "Exported branch patches"
	submoduleSkippedMessageConstant      = "Skipping uninitialized submodule"
	submoduleRevisitMessageConstant      = "Skipping already captured repository"
	submodulePrunedMessageConstant       = "Pruned submodule capture without changes"
	captureCompletedMessageConstant      = "Captured repository"
	repositoryPathFieldConstant          = "repository"
	outputDirectoryFieldConstant         = "output"
	captureModeFieldConstant             = "mode"
	branchFieldConstant                  = "branch"
	comparisonReferenceFieldConstant     = "comparison"
	submodulePathFieldConstant           = "submodule"
	artifactCountFieldConstant           = "artifacts"
	dependencyMissingMessageConstant     = "backup service dependency missing"
	repositoryNotWorkTreeMessageConstant = "path is not inside a git work tree"
	repositoryNotRootMessageConstant     = "path is not the top of its git work tree"
)

var (
	// ErrDependencyMissing indicates NewService received incomplete dependencies.
	ErrDependencyMissing = errors.New(dependencyMissingMessageConstant)

	errNotWorkTree     = errors.New(repositoryNotWorkTreeMessageConstant)
	errNotWorkTreeRoot = errors.New(repositoryNotRootMessageConstant)
)

// Repository is the set of git queries a capture needs.
type Repository interface {
	IsWorkTree(executionContext context.Context, repositoryPath string) (bool, error)
	WorkTreePrefix(executionContext context.Context, repositoryPath string) (string, error)
	GitDirectory(executionContext context.Context, repositoryPath string) (string, error)
	Remotes(executionContext context.Context, repositoryPath string) ([]string, error)
	LocalBranches(executionContext context.Context, repositoryPath string) ([]string, error)
	BranchTracking(executionContext context.Context, repositoryPath string, branchName string) (gitrepo.BranchTracking, error)
	MergeBase(executionContext context.Context, repositoryPath string, firstReference string, secondReference string) (string, bool, error)
	ResolveRevision(executionContext context.Context, repositoryPath string, reference string) (string, error)
	FormatPatches(executionContext context.Context, repositoryPath string, baseRevision string, tipReference string, outputDirectory string) error
	StagedDiff(executionContext context.Context, repositoryPath string) (string, error)
	UnstagedDiff(executionContext context.Context, repositoryPath string) (string, error)
	UntrackedPaths(executionContext context.Context, repositoryPath string) ([]string, error)
	IgnoredPaths(executionContext context.Context, repositoryPath string) ([]string, error)
	Stashes(executionContext context.Context, repositoryPath string) ([]gitrepo.StashEntry, error)
	StashPatch(executionContext context.Context, repositoryPath string, reference string) (string, error)
	Submodules(executionContext context.Context, repositoryPath string) ([]gitrepo.SubmoduleEntry, error)
	GarbageCollect(executionContext context.Context, repositoryPath string) error
	UnsetConfigFileValue(executionContext context.Context, configFilePath string, key string) error
}

// Archiver packs listed files into a tar archive.
type Archiver interface {
	ArchiveFileList(executionContext context.Context, archivePath string, baseDirectory string, paths []string) error
}

// FileSystem performs the file operations of a capture.
type FileSystem interface {
	Afero() afero.Fs
	MkdirAll(path string) error
	WriteFile(path string, data []byte) error
	Exists(path string) (bool, error)
	IsDirectory(path string) (bool, error)
	CopyFile(sourcePath string, destinationPath string) error
	CopyTree(sourceDirectory string, destinationDirectory string) error
	RemoveAll(path string) error
	PruneEmptyParents(directory string, stopDirectory string) error
}

// BaselineProvider yields the baseline used to detect trivial submodule captures.
type BaselineProvider interface {
	Baseline(executionContext context.Context) (manifest.Baseline, error)
}

// ServiceDependencies enumerates collaborators required by the service.
type ServiceDependencies struct {
	Logger     *zap.Logger
	Repository Repository
	Archiver   Archiver
	FileSystem FileSystem
	Baselines  BaselineProvider
}

// Service captures repositories into output directories.
type Service struct {
	logger     *zap.Logger
	repository Repository
	archiver   Archiver
	fileSystem FileSystem
	baselines  BaselineProvider
	options    Options
}

// NewService validates dependencies and constructs a Service.
func NewService(dependencies ServiceDependencies, options Options) (*Service, error) {
	if dependencies.Repository == nil || dependencies.Archiver == nil || dependencies.FileSystem == nil || dependencies.Baselines == nil {
		return nil, ErrDependencyMissing
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:     logger,
		repository: dependencies.Repository,
		archiver:   dependencies.Archiver,
		fileSystem: dependencies.FileSystem,
		baselines:  dependencies.Baselines,
		options:    options,
	}, nil
}

// Capture snapshots the repository at repositoryPath into outputDirectory. The first failing step
// aborts the capture with a CaptureError.
func (service *Service) Capture(executionContext context.Context, repositoryPath string, outputDirectory string) (Result, error) {
	absoluteRepositoryPath, absoluteError := filepath.Abs(repositoryPath)
	if absoluteError != nil {
		return Result{}, CaptureError{Step: stepValidateRepositoryConstant, RepositoryPath: repositoryPath, Category: ErrInvalidRepository, Cause: absoluteError}
	}
	visitedGitDirectories := make(map[string]struct{})
	return service.captureRepository(executionContext, absoluteRepositoryPath, outputDirectory, visitedGitDirectories)
}

func (service *Service) captureRepository(executionContext context.Context, repositoryPath string, outputDirectory string, visitedGitDirectories map[string]struct{}) (Result, error) {
	result := Result{RepositoryPath: repositoryPath, OutputDirectory: outputDirectory}

	gitDirectory, validationError := service.validateRepository(executionContext, repositoryPath)
	if validationError != nil {
		return result, validationError
	}
	if _, visited := visitedGitDirectories[gitDirectory]; visited {
		service.logger.Debug(submoduleRevisitMessageConstant, zap.String(repositoryPathFieldConstant, repositoryPath))
		result.Trivial = true
		return result, nil
	}
	visitedGitDirectories[gitDirectory] = struct{}{}

	if mkdirError := service.fileSystem.MkdirAll(outputDirectory); mkdirError != nil {
		return result, newCaptureError(stepPrepareOutputConstant, repositoryPath, mkdirError)
	}

	remotes, remotesError := service.repository.Remotes(executionContext, repositoryPath)
	if remotesError != nil {
		return result, newCaptureError(stepListRemotesConstant, repositoryPath, remotesError)
	}

	result.Mode = CaptureModeFullCopy
	if len(remotes) > 0 {
		result.Mode = CaptureModeDelta
	}
	service.logger.Info(captureStartedMessageConstant,
		zap.String(repositoryPathFieldConstant, repositoryPath),
		zap.String(outputDirectoryFieldConstant, outputDirectory),
		zap.String(captureModeFieldConstant, string(result.Mode)),
	)

	// Full-copy mode does not recurse: submodule work trees and .git/modules are already in the copy.
	var captureError error
	if result.Mode == CaptureModeDelta {
		captureError = service.captureDelta(executionContext, repositoryPath, gitDirectory, outputDirectory, &result, visitedGitDirectories)
	} else {
		captureError = service.captureFullCopy(executionContext, repositoryPath, gitDirectory, outputDirectory, &result)
	}
	if captureError != nil {
		return result, captureError
	}

	service.logger.Debug(captureCompletedMessageConstant,
		zap.String(repositoryPathFieldConstant, repositoryPath),
		zap.Int(artifactCountFieldConstant, len(result.Artifacts)),
	)
	return result, nil
}

func (service *Service) validateRepository(executionContext context.Context, repositoryPath string) (string, error) {
	isDirectory, statError := service.fileSystem.IsDirectory(repositoryPath)
	if statError != nil {
		return "", CaptureError{Step: stepValidateRepositoryConstant, RepositoryPath: repositoryPath, Category: ErrInvalidRepository, Cause: statError}
	}
	if !isDirectory {
		return "", CaptureError{Step: stepValidateRepositoryConstant, RepositoryPath: repositoryPath, Category: ErrInvalidRepository, Cause: errNotWorkTree}
	}

	isWorkTree, workTreeError := service.repository.IsWorkTree(executionContext, repositoryPath)
	if workTreeError != nil {
		return "", newCaptureError(stepValidateRepositoryConstant, repositoryPath, workTreeError)
	}
	if !isWorkTree {
		return "", CaptureError{Step: stepValidateRepositoryConstant, RepositoryPath: repositoryPath, Category: ErrInvalidRepository, Cause: errNotWorkTree}
	}

	workTreePrefix, prefixError := service.repository.WorkTreePrefix(executionContext, repositoryPath)
	if prefixError != nil {
		return "", newCaptureError(stepValidateRepositoryConstant, repositoryPath, prefixError)
	}
	if len(workTreePrefix) > 0 {
		return "", CaptureError{Step: stepValidateRepositoryConstant, RepositoryPath: repositoryPath, Category: ErrInvalidRepository, Cause: errNotWorkTreeRoot}
	}

	gitDirectory, gitDirectoryError := service.repository.GitDirectory(executionContext, repositoryPath)
	if gitDirectoryError != nil {
		return "", newCaptureError(stepResolveGitDirectoryConstant, repositoryPath, gitDirectoryError)
	}
	return filepath.Clean(gitDirectory), nil
}

func (service *Service) captureDelta(executionContext context.Context, repositoryPath string, gitDirectory string, outputDirectory string, result *Result, visitedGitDirectories map[string]struct{}) error {
	features := service.options.Features

	if features.Config {
		if copyError := service.copyConfig(gitDirectory, outputDirectory, result); copyError != nil {
			return newCaptureError(stepCopyConfigConstant, repositoryPath, copyError)
		}
	}
	if features.Hooks {
		if copyError := service.copyHooks(gitDirectory, outputDirectory, result); copyError != nil {
			return newCaptureError(stepCopyHooksConstant, repositoryPath, copyError)
		}
	}
	if features.Branches {
		if exportError := service.exportBranches(executionContext, repositoryPath, outputDirectory, result); exportError != nil {
			return newCaptureError(stepExportBranchesConstant, repositoryPath, exportError)
		}
	}
	if features.Cached {
		if diffError := service.writeDiff(executionContext, repositoryPath, outputDirectory, cachedChangesFileNameConstant, ArtifactCachedChanges, service.repository.StagedDiff, result); diffError != nil {
			return newCaptureError(stepStagedDiffConstant, repositoryPath, diffError)
		}
	}
	if features.Changes {
		if diffError := service.writeDiff(executionContext, repositoryPath, outputDirectory, changesFileNameConstant, ArtifactChanges, service.repository.UnstagedDiff, result); diffError != nil {
			return newCaptureError(stepUnstagedDiffConstant, repositoryPath, diffError)
		}
	}
	if features.Untracked {
		if archiveError := service.archivePaths(executionContext, repositoryPath, outputDirectory, untrackedArchiveFileNameConstant, ArtifactUntracked, service.repository.UntrackedPaths, result); archiveError != nil {
			return newCaptureError(stepUntrackedArchiveConstant, repositoryPath, archiveError)
		}
	}
	if features.Ignored {
		if archiveError := service.archivePaths(executionContext, repositoryPath, outputDirectory, ignoredArchiveFileNameConstant, ArtifactIgnored, service.repository.IgnoredPaths, result); archiveError != nil {
			return newCaptureError(stepIgnoredArchiveConstant, repositoryPath, archiveError)
		}
	}
	if features.Stashed {
		if stashError := service.exportStashes(executionContext, repositoryPath, outputDirectory, result); stashError != nil {
			return newCaptureError(stepStashesConstant, repositoryPath, stashError)
		}
	}
	if features.Submodules {
		if submoduleError := service.captureSubmodules(executionContext, repositoryPath, outputDirectory, result, visitedGitDirectories); submoduleError != nil {
			var nested CaptureError
			if errors.As(submoduleError, &nested) {
				return submoduleError
			}
			return newCaptureError(stepSubmodulesConstant, repositoryPath, submoduleError)
		}
	}
	return nil
}

func (service *Service) copyConfig(gitDirectory string, outputDirectory string, result *Result) error {
	configPath := filepath.Join(gitDirectory, configFileNameConstant)
	exists, existsError := service.fileSystem.Exists(configPath)
	if existsError != nil || !exists {
		return existsError
	}
	if copyError := service.fileSystem.CopyFile(configPath, filepath.Join(outputDirectory, gitDirectoryNameConstant, configFileNameConstant)); copyError != nil {
		return copyError
	}
	result.Artifacts = append(result.Artifacts, Artifact{Kind: ArtifactConfig, Path: manifest.ConfigPathConstant})
	return nil
}

func (service *Service) copyHooks(gitDirectory string, outputDirectory string, result *Result) error {
	hooksDirectory := filepath.Join(gitDirectory, hooksDirectoryNameConstant)
	isDirectory, statError := service.fileSystem.IsDirectory(hooksDirectory)
	if statError != nil || !isDirectory {
		return statError
	}
	if copyError := service.fileSystem.CopyTree(hooksDirectory, filepath.Join(outputDirectory, gitDirectoryNameConstant, hooksDirectoryNameConstant)); copyError != nil {
		return copyError
	}
	result.Artifacts = append(result.Artifacts, Artifact{Kind: ArtifactHooks, Path: manifest.HooksDirectoryConstant})
	return nil
}

func (service *Service) exportBranches(executionContext context.Context, repositoryPath string, outputDirectory string, result *Result) error {
	branches, branchesError := service.repository.LocalBranches(executionContext, repositoryPath)
	if branchesError != nil {
		return branchesError
	}

	for _, branchName := range branches {
		if strings.HasPrefix(branchName, unnamedBranchPrefixConstant) {
			continue
		}

		tracking, trackingError := service.repository.BranchTracking(executionContext, repositoryPath, branchName)
		if trackingError != nil {
			return trackingError
		}
		comparisonReference := tracking.ComparisonReference()

		mergeBase, found, mergeBaseError := service.repository.MergeBase(executionContext, repositoryPath, tracking.LocalReference(), comparisonReference)
		if mergeBaseError != nil {
			return mergeBaseError
		}
		if !found {
			service.logger.Debug(branchSkippedMessageConstant, zap.String(branchFieldConstant, branchName), zap.String(comparisonReferenceFieldConstant, comparisonReference))
			continue
		}

		tip, resolveError := service.repository.ResolveRevision(executionContext, repositoryPath, tracking.LocalReference())
		if resolveError != nil {
			return resolveError
		}
		if tip == mergeBase {
			service.logger.Debug(branchSkippedMessageConstant, zap.String(branchFieldConstant, branchName), zap.String(comparisonReferenceFieldConstant, comparisonReference))
			continue
		}

		branchDirectory := filepath.Join(outputDirectory, filepath.FromSlash(branchName))
		if mkdirError := service.fileSystem.MkdirAll(branchDirectory); mkdirError != nil {
			return mkdirError
		}
		if patchError := service.repository.FormatPatches(executionContext, repositoryPath, mergeBase, tracking.LocalReference(), branchDirectory); patchError != nil {
			return patchError
		}
		service.logger.Debug(branchExportedMessageConstant, zap.String(branchFieldConstant, branchName), zap.String(comparisonReferenceFieldConstant, comparisonReference))
		result.Artifacts = append(result.Artifacts, Artifact{Kind: ArtifactBranchPatches, Path: branchName})
	}
	return nil
}

func (service *Service) writeDiff(
	executionContext context.Context,
	repositoryPath string,
	outputDirectory string,
	fileName string,
	kind ArtifactKind,
	collect func(context.Context, string) (string, error),
	result *Result,
) error {
	diff, diffError := collect(executionContext, repositoryPath)
	if diffError != nil {
		return diffError
	}
	if len(diff) == 0 {
		return nil
	}
	if writeError := service.fileSystem.WriteFile(filepath.Join(outputDirectory, fileName), []byte(diff)); writeError != nil {
		return writeError
	}
	result.Artifacts = append(result.Artifacts, Artifact{Kind: kind, Path: fileName})
	return nil
}

func (service *Service) archivePaths(
	executionContext context.Context,
	repositoryPath string,
	outputDirectory string,
	fileName string,
	kind ArtifactKind,
	collect func(context.Context, string) ([]string, error),
	result *Result,
) error {
	paths, listError := collect(executionContext, repositoryPath)
	if listError != nil {
		return listError
	}
	if len(paths) == 0 {
		return nil
	}
	if archiveError := service.archiver.ArchiveFileList(executionContext, filepath.Join(outputDirectory, fileName), repositoryPath, paths); archiveError != nil {
		return archiveError
	}
	result.Artifacts = append(result.Artifacts, Artifact{Kind: kind, Path: fileName})
	return nil
}

func (service *Service) exportStashes(executionContext context.Context, repositoryPath string, outputDirectory string, result *Result) error {
	stashes, stashesError := service.repository.Stashes(executionContext, repositoryPath)
	if stashesError != nil {
		return stashesError
	}
	for _, stash := range stashes {
		patch, patchError := service.repository.StashPatch(executionContext, repositoryPath, stash.Reference)
		if patchError != nil {
			return patchError
		}
		fileName := stash.FileName()
		if writeError := service.fileSystem.WriteFile(filepath.Join(outputDirectory, fileName), []byte(patch)); writeError != nil {
			return writeError
		}
		result.Artifacts = append(result.Artifacts, Artifact{Kind: ArtifactStash, Path: fileName})
	}
	return nil
}

func (service *Service) captureSubmodules(executionContext context.Context, repositoryPath string, outputDirectory string, result *Result, visitedGitDirectories map[string]struct{}) error {
	submodules, submodulesError := service.repository.Submodules(executionContext, repositoryPath)
	if submodulesError != nil {
		return submodulesError
	}

	for _, submodule := range submodules {
		if !submodule.Initialized {
			service.logger.Debug(submoduleSkippedMessageConstant, zap.String(submodulePathFieldConstant, submodule.Path))
			continue
		}

		submoduleRepositoryPath := filepath.Join(repositoryPath, filepath.FromSlash(submodule.Path))
		submoduleOutputDirectory := filepath.Join(outputDirectory, filepath.FromSlash(submodule.Path))

		submoduleResult, captureError := service.captureRepository(executionContext, submoduleRepositoryPath, submoduleOutputDirectory, visitedGitDirectories)
		if captureError != nil {
			return captureError
		}

		if !submoduleResult.Trivial && submoduleResult.Mode == CaptureModeDelta {
			trivial, trivialityError := service.isTrivialCapture(executionContext, submoduleOutputDirectory)
			if trivialityError != nil {
				return trivialityError
			}
			submoduleResult.Trivial = trivial
		}

		if submoduleResult.Trivial {
			if pruneError := service.pruneCapture(submoduleOutputDirectory, outputDirectory); pruneError != nil {
				return newCaptureError(stepPruneSubmoduleConstant, submoduleRepositoryPath, pruneError)
			}
			service.logger.Info(submodulePrunedMessageConstant, zap.String(submodulePathFieldConstant, submodule.Path))
		}
		result.Submodules = append(result.Submodules, submoduleResult)
	}
	return nil
}

func (service *Service) isTrivialCapture(executionContext context.Context, captureDirectory string) (bool, error) {
	baseline, baselineError := service.baselines.Baseline(executionContext)
	if baselineError != nil {
		return false, newCaptureError(stepBaselineConstant, captureDirectory, baselineError)
	}
	if !service.options.Features.Hooks {
		baseline = baseline.WithoutHooks()
	}

	captured, manifestError := manifest.Generate(service.fileSystem.Afero(), captureDirectory)
	if manifestError != nil {
		return false, newCaptureError(stepBaselineConstant, captureDirectory, manifestError)
	}
	return baseline.Covers(captured), nil
}

func (service *Service) pruneCapture(captureDirectory string, parentCaptureRoot string) error {
	if removeError := service.fileSystem.RemoveAll(captureDirectory); removeError != nil {
		return removeError
	}
	return service.fileSystem.PruneEmptyParents(filepath.Dir(captureDirectory), parentCaptureRoot)
}

func (service *Service) captureFullCopy(executionContext context.Context, repositoryPath string, gitDirectory string, outputDirectory string, result *Result) error {
	if copyError := service.fileSystem.CopyTree(repositoryPath, outputDirectory); copyError != nil {
		return newCaptureError(stepCopyRepositoryConstant, repositoryPath, copyError)
	}

	copiedGitPath := filepath.Join(outputDirectory, gitDirectoryNameConstant)
	if detachError := service.detachGitDirectory(executionContext, gitDirectory, copiedGitPath); detachError != nil {
		return newCaptureError(stepDetachGitDirectoryConstant, repositoryPath, detachError)
	}

	if gcError := service.repository.GarbageCollect(executionContext, outputDirectory); gcError != nil {
		return newCaptureError(stepGarbageCollectConstant, repositoryPath, gcError)
	}
	result.Artifacts = append(result.Artifacts, Artifact{Kind: ArtifactRepositoryCopy, Path: "."})
	return nil
}

// detachGitDirectory replaces a copied gitfile with the git directory it points at.
func (service *Service) detachGitDirectory(executionContext context.Context, gitDirectory string, copiedGitPath string) error {
	isDirectory, statError := service.fileSystem.IsDirectory(copiedGitPath)
	if statError != nil || isDirectory {
		return statError
	}
	exists, existsError := service.fileSystem.Exists(copiedGitPath)
	if existsError != nil || !exists {
		return existsError
	}

	if removeError := service.fileSystem.RemoveAll(copiedGitPath); removeError != nil {
		return removeError
	}
	if copyError := service.fileSystem.CopyTree(gitDirectory, copiedGitPath); copyError != nil {
		return copyError
	}
	return service.repository.UnsetConfigFileValue(executionContext, filepath.Join(copiedGitPath, configFileNameConstant), worktreeConfigKeyConstant)
}
