// Package cli constructs the git-backup command-line interface. It wires the
// Cobra root command, the configuration loader and structured logging, turns
// flags and configuration into immutable backup options, and drives a capture
// through a private staging directory into the final tar archive.
package cli
