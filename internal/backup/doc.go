// Package backup captures the state of a git repository that a clone would not
// reproduce. Repositories with a remote are captured as a delta: configuration,
// hooks, per-branch patch series of local commits, staged and unstaged diffs,
// optional archives of untracked and ignored files, and stash patches.
// Repositories without a remote are copied verbatim and garbage collected.
// Submodules are captured recursively and dropped again when their capture
// matches the baseline of a pristine repository.
package backup
