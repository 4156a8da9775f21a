// Package ui renders human-readable console output: command lifecycle events
// observed from the shell executor, the destination announcement of a run and
// the summary table of a finished capture.
package ui
