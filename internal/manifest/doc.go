// Package manifest describes the content of a capture directory as sorted
// (path, size, sha256) entries and compares it with a baseline: the content a
// capture has when the repository carries nothing worth keeping. Baselines are
// stored as YAML so a recorded baseline can be reused across runs.
package manifest
