package execshell_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/gitbackup/internal/execshell"
)

func TestOSCommandRunnerReportsExitCodes(testInstance *testing.T) {
	if _, lookupError := exec.LookPath(string(execshell.CommandGit)); lookupError != nil {
		testInstance.Skip("git executable not available")
	}

	runner := execshell.NewOSCommandRunner()
	workingDirectory := testInstance.TempDir()

	versionResult, versionError := runner.Run(context.Background(), execshell.ShellCommand{
		Name:    execshell.CommandGit,
		Details: execshell.CommandDetails{Arguments: []string{"--version"}, WorkingDirectory: workingDirectory},
	})
	require.NoError(testInstance, versionError)
	require.Zero(testInstance, versionResult.ExitCode)
	require.Contains(testInstance, versionResult.StandardOutput, "git version")

	failureResult, failureError := runner.Run(context.Background(), execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:            []string{"rev-parse", "--is-inside-work-tree"},
			WorkingDirectory:     workingDirectory,
			EnvironmentVariables: map[string]string{"GIT_CEILING_DIRECTORIES": workingDirectory},
		},
	})
	require.NoError(testInstance, failureError)
	require.NotZero(testInstance, failureResult.ExitCode)
}

func TestOSCommandRunnerMissingExecutable(testInstance *testing.T) {
	runner := execshell.NewOSCommandRunner()
	_, runError := runner.Run(context.Background(), execshell.ShellCommand{Name: execshell.CommandName("git-backup-missing-executable")})
	require.Error(testInstance, runError)
	require.True(testInstance, errors.Is(runError, exec.ErrNotFound))
}
