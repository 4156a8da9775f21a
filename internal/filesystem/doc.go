// Package filesystem implements the file operations behind a capture: verbatim
// tree copies, single file copies, pruning of emptied parent directories and
// moving the finished archive across devices. It works on an afero.Fs so the
// operations can run against an in-memory filesystem in tests.
package filesystem
