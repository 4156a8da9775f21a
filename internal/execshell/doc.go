// Package execshell runs the external tools git-backup depends on.
//
// ShellExecutor wraps a CommandRunner with exit-status checking, zap logging
// and lifecycle observers. OSCommandRunner is the os/exec backed runner used
// outside of tests. Every non-zero exit surfaces as CommandFailedError and
// every failure to start a process surfaces as CommandExecutionError.
package execshell
