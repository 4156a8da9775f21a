package ui_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/gitbackup/internal/execshell"
	"github.com/temirov/gitbackup/internal/ui"
)

const (
	testCommandWorkingDirectoryConstant   = "/tmp/project"
	testExecutionFailureReasonConstant    = "executable file not found"
	testStandardErrorMessageConstant      = "fatal: bad revision"
	testQueryLabelExpectationConstant     = "git config --get branch.main.remote (in /tmp/project)"
	testStartMessageExpectationConstant   = "Running " + testQueryLabelExpectationConstant
	testQuerySuccessExpectationConstant   = "Completed " + testQueryLabelExpectationConstant
	testGcSuccessExpectationConstant      = "Compacted history in /tmp/project"
	testFailureMessageExpectationConstant = testQueryLabelExpectationConstant + " failed with exit code 2: " + testStandardErrorMessageConstant
	testToleratedFailureExpectation       = testQueryLabelExpectationConstant + " failed with exit code 1"
	testExecutionFailureExpectation       = testQueryLabelExpectationConstant + " failed: " + testExecutionFailureReasonConstant
)

func TestConsoleCommandEventLoggerEmitsMessages(testInstance *testing.T) {
	queryCommand := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:          []string{"config", "--get", "branch.main.remote"},
			WorkingDirectory:   testCommandWorkingDirectoryConstant,
			ToleratedExitCodes: []int{1},
		},
	}
	garbageCollectCommand := execshell.ShellCommand{
		Name: execshell.CommandGit,
		Details: execshell.CommandDetails{
			Arguments:        []string{"gc", "--aggressive", "--quiet", "--prune=midnight"},
			WorkingDirectory: testCommandWorkingDirectoryConstant,
		},
	}

	testCases := []struct {
		name            string
		invoke          func(logger *ui.ConsoleCommandEventLogger)
		expectedLevel   zapcore.Level
		expectedMessage string
	}{
		{
			name: "command_started",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandStarted(queryCommand)
			},
			expectedLevel:   zapcore.DebugLevel,
			expectedMessage: testStartMessageExpectationConstant,
		},
		{
			name: "query_completed",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(queryCommand, execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.DebugLevel,
			expectedMessage: testQuerySuccessExpectationConstant,
		},
		{
			name: "milestone_completed",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(garbageCollectCommand, execshell.ExecutionResult{ExitCode: 0})
			},
			expectedLevel:   zapcore.InfoLevel,
			expectedMessage: testGcSuccessExpectationConstant,
		},
		{
			name: "tolerated_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(queryCommand, execshell.ExecutionResult{ExitCode: 1})
			},
			expectedLevel:   zapcore.DebugLevel,
			expectedMessage: testToleratedFailureExpectation,
		},
		{
			name: "unexpected_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandCompleted(queryCommand, execshell.ExecutionResult{ExitCode: 2, StandardError: testStandardErrorMessageConstant})
			},
			expectedLevel:   zapcore.WarnLevel,
			expectedMessage: testFailureMessageExpectationConstant,
		},
		{
			name: "command_execution_failure",
			invoke: func(logger *ui.ConsoleCommandEventLogger) {
				logger.CommandExecutionFailed(queryCommand, errors.New(testExecutionFailureReasonConstant))
			},
			expectedLevel:   zapcore.ErrorLevel,
			expectedMessage: testExecutionFailureExpectation,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zapcore.DebugLevel)
			eventLogger := ui.NewConsoleCommandEventLogger(zap.New(observerCore))

			testCase.invoke(eventLogger)

			entries := observedLogs.All()
			require.Len(testInstance, entries, 1)
			require.Equal(testInstance, testCase.expectedLevel, entries[0].Level)
			require.Equal(testInstance, testCase.expectedMessage, entries[0].Message)
		})
	}
}
