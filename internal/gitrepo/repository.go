package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/gitbackup/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant    = "git executor not configured"
	remoteListErrorTemplateConstant         = "failed to list remotes: %w"
	branchListErrorTemplateConstant         = "failed to list local branches: %w"
	configReadErrorTemplateConstant         = "failed to read %s: %w"
	configUnsetErrorTemplateConstant        = "failed to unset %s: %w"
	mergeBaseErrorTemplateConstant          = "failed to compute merge base of %s and %s: %w"
	revisionResolveErrorTemplateConstant    = "failed to resolve %s: %w"
	formatPatchErrorTemplateConstant        = "failed to export patches for %s: %w"
	diffErrorTemplateConstant               = "failed to collect diff: %w"
	cleanListErrorTemplateConstant          = "failed to list files eligible for clean: %w"
	stashListErrorTemplateConstant          = "failed to list stashes: %w"
	stashShowErrorTemplateConstant          = "failed to show stash %s: %w"
	submoduleListErrorTemplateConstant      = "failed to list submodules: %w"
	garbageCollectErrorTemplateConstant     = "failed to garbage collect: %w"
	gitDirectoryErrorTemplateConstant       = "failed to resolve git directory: %w"
	workTreePrefixErrorTemplateConstant     = "failed to resolve work tree prefix: %w"
	initErrorTemplateConstant               = "failed to initialize repository: %w"
	workTreeCheckErrorTemplateConstant      = "failed to inspect work tree: %w"
	branchConfigKeyTemplateConstant         = "branch.%s.%s"
	branchRemoteConfigSuffixConstant        = "remote"
	branchMergeConfigSuffixConstant         = "merge"
	revisionRangeTemplateConstant           = "%s..%s"
	localBranchReferencePrefixConstant      = "refs/heads/"
	defaultComparisonReferenceConstant      = "master"
	localRemoteNameConstant                 = "."
	remoteReferenceTemplateConstant         = "%s/%s"
	configUnsetKeyExitCodeConstant          = 1
	configMissingKeyOnUnsetExitCodeConstant = 5
	mergeBaseNotFoundExitCodeConstant       = 1
	notRepositoryExitCodeConstant           = 128
	workTreeTrueOutputConstant              = "true"
	garbageCollectPruneArgumentConstant     = "--prune=midnight"
	terminalPromptEnvironmentNameConstant   = "GIT_TERMINAL_PROMPT"
	terminalPromptDisabledValueConstant     = "0"
	localeEnvironmentNameConstant           = "LC_ALL"
	localeEnvironmentValueConstant          = "C"
)

// ErrExecutorNotConfigured indicates NewRepositoryManager received a nil executor.
var ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)

// GitExecutor runs git commands.
type GitExecutor interface {
	ExecuteGit(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// BranchTracking describes a local branch and the upstream it is compared against.
type BranchTracking struct {
	Name       string
	RemoteName string
	MergeRef   string
}

// ComparisonReference returns the ref a branch is compared with to find local-only commits.
// Branches without a complete upstream configuration are compared with master.
func (tracking BranchTracking) ComparisonReference() string {
	if len(tracking.RemoteName) == 0 || len(tracking.MergeRef) == 0 {
		return defaultComparisonReferenceConstant
	}
	mergeBranch := strings.TrimPrefix(tracking.MergeRef, localBranchReferencePrefixConstant)
	if tracking.RemoteName == localRemoteNameConstant {
		return mergeBranch
	}
	return fmt.Sprintf(remoteReferenceTemplateConstant, tracking.RemoteName, mergeBranch)
}

// LocalReference returns the fully qualified ref of the branch.
func (tracking BranchTracking) LocalReference() string {
	return localBranchReferencePrefixConstant + tracking.Name
}

// RepositoryManager runs git queries against a repository path.
type RepositoryManager struct {
	executor GitExecutor
}

// NewRepositoryManager constructs a RepositoryManager.
func NewRepositoryManager(executor GitExecutor) (*RepositoryManager, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	return &RepositoryManager{executor: executor}, nil
}

// IsWorkTree reports whether repositoryPath is inside a git work tree.
func (manager *RepositoryManager) IsWorkTree(executionContext context.Context, repositoryPath string) (bool, error) {
	result, executionError := manager.runTolerating(executionContext, repositoryPath, []int{notRepositoryExitCodeConstant}, "rev-parse", "--is-inside-work-tree")
	if executionError != nil {
		if _, failed := execshell.ExitCode(executionError); failed {
			return false, nil
		}
		return false, fmt.Errorf(workTreeCheckErrorTemplateConstant, executionError)
	}
	return strings.TrimSpace(result.StandardOutput) == workTreeTrueOutputConstant, nil
}

// GitDirectory resolves the absolute git directory, following gitfiles used by submodules.
func (manager *RepositoryManager) GitDirectory(executionContext context.Context, repositoryPath string) (string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "rev-parse", "--absolute-git-dir")
	if executionError != nil {
		return "", fmt.Errorf(gitDirectoryErrorTemplateConstant, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// WorkTreePrefix reports repositoryPath relative to the top of its work tree; it is empty at the root.
func (manager *RepositoryManager) WorkTreePrefix(executionContext context.Context, repositoryPath string) (string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "rev-parse", "--show-prefix")
	if executionError != nil {
		return "", fmt.Errorf(workTreePrefixErrorTemplateConstant, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// Remotes lists configured remote names.
func (manager *RepositoryManager) Remotes(executionContext context.Context, repositoryPath string) ([]string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "remote")
	if executionError != nil {
		return nil, fmt.Errorf(remoteListErrorTemplateConstant, executionError)
	}
	return splitNonEmptyLines(result.StandardOutput), nil
}

// LocalBranches lists local branch names. Detached HEAD states never appear.
func (manager *RepositoryManager) LocalBranches(executionContext context.Context, repositoryPath string) ([]string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "for-each-ref", "--format=%(refname:short)", localBranchReferencePrefixConstant)
	if executionError != nil {
		return nil, fmt.Errorf(branchListErrorTemplateConstant, executionError)
	}
	return splitNonEmptyLines(result.StandardOutput), nil
}

// BranchTracking reads the upstream configuration of a local branch.
func (manager *RepositoryManager) BranchTracking(executionContext context.Context, repositoryPath string, branchName string) (BranchTracking, error) {
	remoteName, remoteError := manager.ConfigValue(executionContext, repositoryPath, fmt.Sprintf(branchConfigKeyTemplateConstant, branchName, branchRemoteConfigSuffixConstant))
	if remoteError != nil {
		return BranchTracking{}, remoteError
	}
	mergeRef, mergeError := manager.ConfigValue(executionContext, repositoryPath, fmt.Sprintf(branchConfigKeyTemplateConstant, branchName, branchMergeConfigSuffixConstant))
	if mergeError != nil {
		return BranchTracking{}, mergeError
	}
	return BranchTracking{Name: branchName, RemoteName: remoteName, MergeRef: mergeRef}, nil
}

// ConfigValue reads a single config value; an unset key yields an empty string.
func (manager *RepositoryManager) ConfigValue(executionContext context.Context, repositoryPath string, key string) (string, error) {
	result, executionError := manager.runTolerating(executionContext, repositoryPath, []int{configUnsetKeyExitCodeConstant}, "config", "--get", key)
	if executionError != nil {
		if exitCode, failed := execshell.ExitCode(executionError); failed && exitCode == configUnsetKeyExitCodeConstant {
			return "", nil
		}
		return "", fmt.Errorf(configReadErrorTemplateConstant, key, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// UnsetConfigFileValue removes a key from a specific config file; a missing key is not an error.
func (manager *RepositoryManager) UnsetConfigFileValue(executionContext context.Context, configFilePath string, key string) error {
	_, executionError := manager.runTolerating(executionContext, "", []int{configMissingKeyOnUnsetExitCodeConstant}, "config", "--file", configFilePath, "--unset", key)
	if executionError != nil {
		if exitCode, failed := execshell.ExitCode(executionError); failed && exitCode == configMissingKeyOnUnsetExitCodeConstant {
			return nil
		}
		return fmt.Errorf(configUnsetErrorTemplateConstant, key, executionError)
	}
	return nil
}

// MergeBase returns the best common ancestor of two refs. The boolean is false when none exists,
// which includes refs that do not resolve.
func (manager *RepositoryManager) MergeBase(executionContext context.Context, repositoryPath string, firstReference string, secondReference string) (string, bool, error) {
	result, executionError := manager.runTolerating(executionContext, repositoryPath, []int{mergeBaseNotFoundExitCodeConstant, notRepositoryExitCodeConstant}, "merge-base", firstReference, secondReference)
	if executionError != nil {
		if _, failed := execshell.ExitCode(executionError); failed {
			return "", false, nil
		}
		return "", false, fmt.Errorf(mergeBaseErrorTemplateConstant, firstReference, secondReference, executionError)
	}
	mergeBase := strings.TrimSpace(result.StandardOutput)
	return mergeBase, len(mergeBase) > 0, nil
}

// ResolveRevision returns the object name a ref points to.
func (manager *RepositoryManager) ResolveRevision(executionContext context.Context, repositoryPath string, reference string) (string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "rev-parse", "--verify", reference)
	if executionError != nil {
		return "", fmt.Errorf(revisionResolveErrorTemplateConstant, reference, executionError)
	}
	return strings.TrimSpace(result.StandardOutput), nil
}

// FormatPatches writes the patch series base..tip into outputDirectory.
func (manager *RepositoryManager) FormatPatches(executionContext context.Context, repositoryPath string, baseRevision string, tipReference string, outputDirectory string) error {
	revisionRange := fmt.Sprintf(revisionRangeTemplateConstant, baseRevision, tipReference)
	_, executionError := manager.run(executionContext, repositoryPath, "format-patch", "--binary", "--output-directory", outputDirectory, revisionRange)
	if executionError != nil {
		return fmt.Errorf(formatPatchErrorTemplateConstant, tipReference, executionError)
	}
	return nil
}

// StagedDiff returns the binary-safe diff between the index and HEAD.
func (manager *RepositoryManager) StagedDiff(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.diff(executionContext, repositoryPath, "diff", "--cached", "--binary")
}

// UnstagedDiff returns the binary-safe diff between the work tree and the index.
func (manager *RepositoryManager) UnstagedDiff(executionContext context.Context, repositoryPath string) (string, error) {
	return manager.diff(executionContext, repositoryPath, "diff", "--binary")
}

func (manager *RepositoryManager) diff(executionContext context.Context, repositoryPath string, arguments ...string) (string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, arguments...)
	if executionError != nil {
		return "", fmt.Errorf(diffErrorTemplateConstant, executionError)
	}
	return result.StandardOutput, nil
}

// UntrackedPaths lists untracked files and directories that are not ignored.
func (manager *RepositoryManager) UntrackedPaths(executionContext context.Context, repositoryPath string) ([]string, error) {
	return manager.cleanCandidates(executionContext, repositoryPath, "clean", "--dry-run", "-d")
}

// IgnoredPaths lists ignored files and directories.
func (manager *RepositoryManager) IgnoredPaths(executionContext context.Context, repositoryPath string) ([]string, error) {
	return manager.cleanCandidates(executionContext, repositoryPath, "clean", "--dry-run", "-d", "-X")
}

func (manager *RepositoryManager) cleanCandidates(executionContext context.Context, repositoryPath string, arguments ...string) ([]string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, arguments...)
	if executionError != nil {
		return nil, fmt.Errorf(cleanListErrorTemplateConstant, executionError)
	}
	return ParseCleanDryRun(result.StandardOutput), nil
}

// Stashes lists stash entries, newest first.
func (manager *RepositoryManager) Stashes(executionContext context.Context, repositoryPath string) ([]StashEntry, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "stash", "list")
	if executionError != nil {
		return nil, fmt.Errorf(stashListErrorTemplateConstant, executionError)
	}
	return ParseStashList(result.StandardOutput), nil
}

// StashPatch returns the binary-safe patch recorded by a stash entry.
func (manager *RepositoryManager) StashPatch(executionContext context.Context, repositoryPath string, reference string) (string, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "stash", "show", "-p", "--binary", reference)
	if executionError != nil {
		return "", fmt.Errorf(stashShowErrorTemplateConstant, reference, executionError)
	}
	return result.StandardOutput, nil
}

// Submodules lists the submodules registered in the repository.
func (manager *RepositoryManager) Submodules(executionContext context.Context, repositoryPath string) ([]SubmoduleEntry, error) {
	result, executionError := manager.run(executionContext, repositoryPath, "submodule", "status")
	if executionError != nil {
		return nil, fmt.Errorf(submoduleListErrorTemplateConstant, executionError)
	}
	return ParseSubmoduleStatus(result.StandardOutput), nil
}

// GarbageCollect compacts the object store, pruning unreachable objects older than today.
func (manager *RepositoryManager) GarbageCollect(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, repositoryPath, "gc", "--aggressive", "--quiet", garbageCollectPruneArgumentConstant)
	if executionError != nil {
		return fmt.Errorf(garbageCollectErrorTemplateConstant, executionError)
	}
	return nil
}

// Init creates an empty repository at repositoryPath.
func (manager *RepositoryManager) Init(executionContext context.Context, repositoryPath string) error {
	_, executionError := manager.run(executionContext, "", "init", "--quiet", repositoryPath)
	if executionError != nil {
		return fmt.Errorf(initErrorTemplateConstant, executionError)
	}
	return nil
}

func (manager *RepositoryManager) run(executionContext context.Context, repositoryPath string, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.runTolerating(executionContext, repositoryPath, nil, arguments...)
}

func (manager *RepositoryManager) runTolerating(executionContext context.Context, repositoryPath string, toleratedExitCodes []int, arguments ...string) (execshell.ExecutionResult, error) {
	return manager.executor.ExecuteGit(executionContext, execshell.CommandDetails{
		Arguments:        arguments,
		WorkingDirectory: repositoryPath,
		EnvironmentVariables: map[string]string{
			terminalPromptEnvironmentNameConstant: terminalPromptDisabledValueConstant,
			localeEnvironmentNameConstant:         localeEnvironmentValueConstant,
		},
		ToleratedExitCodes: toleratedExitCodes,
	})
}
