package execshell

// CommandEventObserver receives lifecycle notifications for every command the ShellExecutor runs.
type CommandEventObserver interface {
	// CommandStarted is called before the process starts.
	CommandStarted(command ShellCommand)
	// CommandCompleted is called once the process exits, whatever its exit code.
	CommandCompleted(command ShellCommand, result ExecutionResult)
	// CommandExecutionFailed is called when the process could not be started or awaited.
	CommandExecutionFailed(command ShellCommand, failure error)
}

type noopCommandEventObserver struct{}

func (noopCommandEventObserver) CommandStarted(ShellCommand) {}

func (noopCommandEventObserver) CommandCompleted(ShellCommand, ExecutionResult) {}

func (noopCommandEventObserver) CommandExecutionFailed(ShellCommand, error) {}
