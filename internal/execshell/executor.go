package execshell

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	loggerNotConfiguredMessageConstant         = "shell executor requires a logger"
	commandRunnerNotConfiguredMessageConstant  = "shell executor requires a command runner"
	commandFailedErrorTemplateConstant         = "%s exited with code %d%s"
	commandExecutionErrorTemplateConstant      = "%s could not be executed: %v"
	commandStandardErrorSuffixTemplateConstant = ": %s"
	logFieldCommandConstant                    = "command"
	logFieldArgumentsConstant                  = "arguments"
	logFieldWorkingDirectoryConstant           = "working_directory"
	logFieldExitCodeConstant                   = "exit_code"
	logFieldStandardErrorConstant              = "stderr"
)

// CommandName identifies an external executable.
type CommandName string

// Supported executables.
const (
	CommandGit CommandName = CommandName("git")
	CommandTar CommandName = CommandName("tar")
)

// ErrLoggerNotConfigured indicates NewShellExecutor received a nil logger.
var ErrLoggerNotConfigured = errors.New(loggerNotConfiguredMessageConstant)

// ErrCommandRunnerNotConfigured indicates NewShellExecutor received a nil runner.
var ErrCommandRunnerNotConfigured = errors.New(commandRunnerNotConfiguredMessageConstant)

// CommandDetails describes a single invocation. ToleratedExitCodes lists non-zero exit codes the
// caller interprets itself; they still produce CommandFailedError but are logged at debug level.
type CommandDetails struct {
	Arguments            []string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	StandardInput        []byte
	ToleratedExitCodes   []int
}

// ToleratesExitCode reports whether exitCode is one of the tolerated exit codes.
func (details CommandDetails) ToleratesExitCode(exitCode int) bool {
	for _, toleratedExitCode := range details.ToleratedExitCodes {
		if toleratedExitCode == exitCode {
			return true
		}
	}
	return false
}

// ShellCommand pairs an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the observable output of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner starts processes.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// CommandFailedError reports a process that finished with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failing command and its standard error.
func (failure CommandFailedError) Error() string {
	standardErrorSuffix := ""
	if trimmed := strings.TrimSpace(failure.Result.StandardError); len(trimmed) > 0 {
		standardErrorSuffix = fmt.Sprintf(commandStandardErrorSuffixTemplateConstant, trimmed)
	}
	return fmt.Sprintf(commandFailedErrorTemplateConstant, describeCommand(failure.Command), failure.Result.ExitCode, standardErrorSuffix)
}

// CommandExecutionError reports a process that could not be started or waited on.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the command that could not run.
func (failure CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, describeCommand(failure.Command), failure.Cause)
}

// Unwrap exposes the underlying cause.
func (failure CommandExecutionError) Unwrap() error {
	return failure.Cause
}

// ExecutableMissing reports whether the command could not start because the executable was not found.
func (failure CommandExecutionError) ExecutableMissing() bool {
	return errors.Is(failure.Cause, exec.ErrNotFound)
}

// ExitCode extracts the exit code from a CommandFailedError anywhere in the chain.
func ExitCode(err error) (int, bool) {
	var failedError CommandFailedError
	if errors.As(err, &failedError) {
		return failedError.Result.ExitCode, true
	}
	return 0, false
}

// ShellExecutorOption customizes a ShellExecutor.
type ShellExecutorOption func(executor *ShellExecutor)

// WithCommandEventObserver registers an observer notified about every command lifecycle event.
func WithCommandEventObserver(observer CommandEventObserver) ShellExecutorOption {
	return func(executor *ShellExecutor) {
		if observer != nil {
			executor.observer = observer
		}
	}
}

// ShellExecutor runs commands, checks their exit status and logs the outcome.
type ShellExecutor struct {
	logger    *zap.Logger
	runner    CommandRunner
	observer  CommandEventObserver
	formatter CommandMessageFormatter
}

// NewShellExecutor validates collaborators and constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, options ...ShellExecutorOption) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	executor := &ShellExecutor{
		logger:   logger,
		runner:   runner,
		observer: noopCommandEventObserver{},
	}
	for _, option := range options {
		if option != nil {
			option(executor)
		}
	}
	return executor, nil
}

// ExecuteGit runs git with the provided details.
func (executor *ShellExecutor) ExecuteGit(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandGit, Details: details})
}

// ExecuteTar runs tar with the provided details.
func (executor *ShellExecutor) ExecuteTar(executionContext context.Context, details CommandDetails) (ExecutionResult, error) {
	return executor.Execute(executionContext, ShellCommand{Name: CommandTar, Details: details})
}

// Execute runs an arbitrary command. A non-zero exit yields CommandFailedError and an empty result.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandFields := []zap.Field{
		zap.String(logFieldCommandConstant, string(command.Name)),
		zap.Strings(logFieldArgumentsConstant, command.Details.Arguments),
		zap.String(logFieldWorkingDirectoryConstant, command.Details.WorkingDirectory),
	}

	executor.observer.CommandStarted(command)
	executor.logger.Debug(executor.formatter.BuildStartedMessage(command), commandFields...)

	result, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.observer.CommandExecutionFailed(command, runError)
		executor.logger.Error(executor.formatter.BuildExecutionFailureMessage(command, runError), append(commandFields, zap.Error(runError))...)
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.observer.CommandCompleted(command, result)
	if result.ExitCode != 0 {
		failureLevel := zapcore.WarnLevel
		if command.Details.ToleratesExitCode(result.ExitCode) {
			failureLevel = zapcore.DebugLevel
		}
		executor.logger.Log(
			failureLevel,
			executor.formatter.BuildFailureMessage(command, result),
			append(commandFields, zap.Int(logFieldExitCodeConstant, result.ExitCode), zap.String(logFieldStandardErrorConstant, strings.TrimSpace(result.StandardError)))...,
		)
		return ExecutionResult{}, CommandFailedError{Command: command, Result: result}
	}

	executor.logger.Debug(executor.formatter.BuildSuccessMessage(command), commandFields...)
	return result, nil
}

func describeCommand(command ShellCommand) string {
	if len(command.Details.Arguments) == 0 {
		return string(command.Name)
	}
	return string(command.Name) + " " + strings.Join(command.Details.Arguments, " ")
}
