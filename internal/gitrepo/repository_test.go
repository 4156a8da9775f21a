package gitrepo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitbackup/internal/execshell"
	"github.com/temirov/gitbackup/internal/gitrepo"
)

const (
	testRepositoryPathConstant = "/tmp/repository"
)

type stubGitExecutor struct {
	recorded  []execshell.CommandDetails
	responses []stubGitResponse
}

type stubGitResponse struct {
	result execshell.ExecutionResult
	err    error
}

func (executor *stubGitExecutor) ExecuteGit(_ context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error) {
	executor.recorded = append(executor.recorded, details)
	if len(executor.responses) == 0 {
		return execshell.ExecutionResult{}, nil
	}

	next := executor.responses[0]
	executor.responses = executor.responses[1:]
	if next.err != nil {
		return execshell.ExecutionResult{}, next.err
	}
	return next.result, nil
}

func exitFailure(exitCode int) error {
	return execshell.CommandFailedError{
		Command: execshell.ShellCommand{Name: execshell.CommandGit},
		Result:  execshell.ExecutionResult{ExitCode: exitCode},
	}
}

func newManager(testInstance *testing.T, responses ...stubGitResponse) (*gitrepo.RepositoryManager, *stubGitExecutor) {
	testInstance.Helper()
	executor := &stubGitExecutor{responses: responses}
	manager, creationError := gitrepo.NewRepositoryManager(executor)
	require.NoError(testInstance, creationError)
	return manager, executor
}

func TestNewRepositoryManagerRequiresExecutor(testInstance *testing.T) {
	_, creationError := gitrepo.NewRepositoryManager(nil)
	require.ErrorIs(testInstance, creationError, gitrepo.ErrExecutorNotConfigured)
}

func TestComparisonReference(testInstance *testing.T) {
	testCases := []struct {
		name     string
		tracking gitrepo.BranchTracking
		expected string
	}{
		{
			name:     "untracked_defaults_to_master",
			tracking: gitrepo.BranchTracking{Name: "feature"},
			expected: "master",
		},
		{
			name:     "remote_without_merge_defaults_to_master",
			tracking: gitrepo.BranchTracking{Name: "feature", RemoteName: "origin"},
			expected: "master",
		},
		{
			name:     "tracked_branch_uses_remote_ref",
			tracking: gitrepo.BranchTracking{Name: "feature", RemoteName: "origin", MergeRef: "refs/heads/feature"},
			expected: "origin/feature",
		},
		{
			name:     "nested_branch_name_is_preserved",
			tracking: gitrepo.BranchTracking{Name: "topic", RemoteName: "upstream", MergeRef: "refs/heads/team/topic"},
			expected: "upstream/team/topic",
		},
		{
			name:     "local_upstream_uses_branch_name",
			tracking: gitrepo.BranchTracking{Name: "topic", RemoteName: ".", MergeRef: "refs/heads/main"},
			expected: "main",
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			require.Equal(testInstance, testCase.expected, testCase.tracking.ComparisonReference())
		})
	}
}

func TestBranchTrackingTreatsUnsetKeysAsEmpty(testInstance *testing.T) {
	manager, executor := newManager(testInstance,
		stubGitResponse{err: exitFailure(1)},
		stubGitResponse{err: exitFailure(1)},
	)

	tracking, trackingError := manager.BranchTracking(context.Background(), testRepositoryPathConstant, "feature")
	require.NoError(testInstance, trackingError)
	require.Equal(testInstance, gitrepo.BranchTracking{Name: "feature"}, tracking)
	require.Equal(testInstance, []string{"config", "--get", "branch.feature.remote"}, executor.recorded[0].Arguments)
	require.Equal(testInstance, []string{"config", "--get", "branch.feature.merge"}, executor.recorded[1].Arguments)
	require.Equal(testInstance, testRepositoryPathConstant, executor.recorded[0].WorkingDirectory)
	require.Equal(testInstance, "C", executor.recorded[0].EnvironmentVariables["LC_ALL"])
}

func TestBranchTrackingSurfacesOtherFailures(testInstance *testing.T) {
	manager, _ := newManager(testInstance, stubGitResponse{err: exitFailure(128)})

	_, trackingError := manager.BranchTracking(context.Background(), testRepositoryPathConstant, "feature")
	require.ErrorContains(testInstance, trackingError, "branch.feature.remote")
}

func TestMergeBaseReportsMissingBase(testInstance *testing.T) {
	manager, executor := newManager(testInstance,
		stubGitResponse{err: exitFailure(1)},
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "abc123\n"}},
	)

	_, found, mergeBaseError := manager.MergeBase(context.Background(), testRepositoryPathConstant, "refs/heads/feature", "master")
	require.NoError(testInstance, mergeBaseError)
	require.False(testInstance, found)
	require.Equal(testInstance, []string{"merge-base", "refs/heads/feature", "master"}, executor.recorded[0].Arguments)
	require.True(testInstance, executor.recorded[0].ToleratesExitCode(1))

	mergeBase, found, mergeBaseError := manager.MergeBase(context.Background(), testRepositoryPathConstant, "refs/heads/feature", "origin/feature")
	require.NoError(testInstance, mergeBaseError)
	require.True(testInstance, found)
	require.Equal(testInstance, "abc123", mergeBase)
}

func TestMergeBaseSurfacesExecutionErrors(testInstance *testing.T) {
	manager, _ := newManager(testInstance, stubGitResponse{err: execshell.CommandExecutionError{Cause: errors.New("killed")}})

	_, _, mergeBaseError := manager.MergeBase(context.Background(), testRepositoryPathConstant, "a", "b")
	require.Error(testInstance, mergeBaseError)
	require.ErrorContains(testInstance, mergeBaseError, "killed")
}

func TestFormatPatchesArguments(testInstance *testing.T) {
	manager, executor := newManager(testInstance)

	require.NoError(testInstance, manager.FormatPatches(context.Background(), testRepositoryPathConstant, "abc", "refs/heads/feature", "/tmp/out/feature"))
	require.Equal(testInstance, []string{"format-patch", "--binary", "--output-directory", "/tmp/out/feature", "abc..refs/heads/feature"}, executor.recorded[0].Arguments)
}

func TestDiffCommandsAreBinarySafe(testInstance *testing.T) {
	manager, executor := newManager(testInstance,
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "staged"}},
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: ""}},
	)

	staged, stagedError := manager.StagedDiff(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, stagedError)
	require.Equal(testInstance, "staged", staged)

	unstaged, unstagedError := manager.UnstagedDiff(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, unstagedError)
	require.Empty(testInstance, unstaged)

	require.Equal(testInstance, []string{"diff", "--cached", "--binary"}, executor.recorded[0].Arguments)
	require.Equal(testInstance, []string{"diff", "--binary"}, executor.recorded[1].Arguments)
}

func TestRemotesAndBranchesSplitLines(testInstance *testing.T) {
	manager, executor := newManager(testInstance,
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "origin\nupstream\n"}},
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "main\nteam/topic\n\n"}},
	)

	remotes, remotesError := manager.Remotes(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, remotesError)
	require.Equal(testInstance, []string{"origin", "upstream"}, remotes)

	branches, branchesError := manager.LocalBranches(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, branchesError)
	require.Equal(testInstance, []string{"main", "team/topic"}, branches)
	require.Equal(testInstance, []string{"for-each-ref", "--format=%(refname:short)", "refs/heads/"}, executor.recorded[1].Arguments)
}

func TestIsWorkTree(testInstance *testing.T) {
	manager, _ := newManager(testInstance,
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "true\n"}},
		stubGitResponse{err: exitFailure(128)},
	)

	inside, insideError := manager.IsWorkTree(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, insideError)
	require.True(testInstance, inside)

	inside, insideError = manager.IsWorkTree(context.Background(), "/tmp")
	require.NoError(testInstance, insideError)
	require.False(testInstance, inside)
}

func TestUnsetConfigFileValueToleratesMissingKey(testInstance *testing.T) {
	manager, executor := newManager(testInstance, stubGitResponse{err: exitFailure(5)}, stubGitResponse{err: exitFailure(3)})

	require.NoError(testInstance, manager.UnsetConfigFileValue(context.Background(), "/tmp/copy/.git/config", "core.worktree"))
	require.Equal(testInstance, []string{"config", "--file", "/tmp/copy/.git/config", "--unset", "core.worktree"}, executor.recorded[0].Arguments)
	require.Error(testInstance, manager.UnsetConfigFileValue(context.Background(), "/tmp/copy/.git/config", "core.worktree"))
}

func TestGarbageCollectPrunesOlderThanToday(testInstance *testing.T) {
	manager, executor := newManager(testInstance)

	require.NoError(testInstance, manager.GarbageCollect(context.Background(), "/tmp/copy"))
	require.Equal(testInstance, []string{"gc", "--aggressive", "--quiet", "--prune=midnight"}, executor.recorded[0].Arguments)
	require.Equal(testInstance, "/tmp/copy", executor.recorded[0].WorkingDirectory)
}

func TestWorkTreePrefix(testInstance *testing.T) {
	manager, executor := newManager(testInstance,
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "\n"}},
		stubGitResponse{result: execshell.ExecutionResult{StandardOutput: "docs/guide/\n"}},
	)

	rootPrefix, rootError := manager.WorkTreePrefix(context.Background(), testRepositoryPathConstant)
	require.NoError(testInstance, rootError)
	require.Empty(testInstance, rootPrefix)
	require.Equal(testInstance, []string{"rev-parse", "--show-prefix"}, executor.recorded[0].Arguments)

	nestedPrefix, nestedError := manager.WorkTreePrefix(context.Background(), testRepositoryPathConstant+"/docs/guide")
	require.NoError(testInstance, nestedError)
	require.Equal(testInstance, "docs/guide/", nestedPrefix)
}
