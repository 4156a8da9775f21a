package backup

// CaptureMode distinguishes the two capture strategies.
type CaptureMode string

// Capture modes.
const (
	CaptureModeDelta    CaptureMode = "delta"
	CaptureModeFullCopy CaptureMode = "full-copy"
)

// ArtifactKind labels a produced file or directory.
type ArtifactKind string

// Artifact kinds.
const (
	ArtifactConfig         ArtifactKind = "config"
	ArtifactHooks          ArtifactKind = "hooks"
	ArtifactBranchPatches  ArtifactKind = "branch-patches"
	ArtifactCachedChanges  ArtifactKind = "cached-changes"
	ArtifactChanges        ArtifactKind = "changes"
	ArtifactUntracked      ArtifactKind = "untracked"
	ArtifactIgnored        ArtifactKind = "ignored"
	ArtifactStash          ArtifactKind = "stash"
	ArtifactRepositoryCopy ArtifactKind = "repository-copy"
)

// Artifact is one entry of a capture. Path is relative to the capture's output directory.
type Artifact struct {
	Kind ArtifactKind
	Path string
}

// Result describes a finished capture and its submodule captures.
type Result struct {
	RepositoryPath  string
	OutputDirectory string
	Mode            CaptureMode
	Artifacts       []Artifact
	Submodules      []Result
	Trivial         bool
}

// ArtifactCount counts artifacts of this capture and of every retained submodule capture.
func (result Result) ArtifactCount() int {
	count := len(result.Artifacts)
	for _, submodule := range result.Submodules {
		if submodule.Trivial {
			continue
		}
		count += submodule.ArtifactCount()
	}
	return count
}
