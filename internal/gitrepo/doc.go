// Package gitrepo contains the git queries git-backup relies on.
//
// RepositoryManager runs git through an execshell-compatible executor and
// parses its porcelain output into branch tracking descriptors, stash
// entries, submodule entries and clean dry-run listings. Every call checks
// the exit status; the few exit codes that carry meaning (an unset config
// key, a missing merge base) are interpreted instead of reported.
package gitrepo
